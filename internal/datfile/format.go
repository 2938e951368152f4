// Package datfile writes and reads the FLO-2D text data files produced by
// schematization: CHAN.DAT, XSEC.DAT, CHANBANK.DAT, LEVEE.DAT and FPXSEC.DAT,
// plus the TOPO.DAT grid definition.
package datfile

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

// F formats a number with four decimals.
func F(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}

// line joins fields with two spaces, the FLO-2D column separator.
func line(fields ...string) string {
	return strings.Join(fields, "  ") + "\n"
}

func itoa(v int64) string { return strconv.FormatInt(v, 10) }

// lineWriter keeps the first write error so callers can check once.
type lineWriter struct {
	w   *bufio.Writer
	err error
}

func newLineWriter(w io.Writer) *lineWriter {
	return &lineWriter{w: bufio.NewWriter(w)}
}

func (lw *lineWriter) put(fields ...string) {
	if lw.err != nil {
		return
	}
	_, lw.err = lw.w.WriteString(line(fields...))
}

func (lw *lineWriter) flush(what string) error {
	if lw.err == nil {
		lw.err = lw.w.Flush()
	}
	return eris.Wrapf(lw.err, "datfile: write %s", what)
}

// scanner walks non-empty lines and keeps the line number for messages.
type scanner struct {
	sc   *bufio.Scanner
	n    int
	name string
}

func newScanner(r io.Reader, name string) *scanner {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)
	return &scanner{sc: sc, name: name}
}

// next returns the fields of the next non-blank line.
func (s *scanner) next() ([]string, bool) {
	for s.sc.Scan() {
		s.n++
		if f := strings.Fields(s.sc.Text()); len(f) > 0 {
			return f, true
		}
	}
	return nil, false
}

func (s *scanner) errorf(format string, args ...any) error {
	return eris.Errorf("datfile: %s line %d: "+format, append([]any{s.name, s.n}, args...)...)
}

func (s *scanner) err() error {
	return eris.Wrapf(s.sc.Err(), "datfile: read %s", s.name)
}

func (s *scanner) float(f string) (float64, error) {
	v, err := strconv.ParseFloat(f, 64)
	if err != nil {
		return 0, s.errorf("invalid number %q", f)
	}
	return v, nil
}

func (s *scanner) int(f string) (int64, error) {
	v, err := strconv.ParseInt(f, 10, 64)
	if err != nil {
		return 0, s.errorf("invalid integer %q", f)
	}
	return v, nil
}

func (s *scanner) floats(fields []string) ([]float64, error) {
	out := make([]float64, len(fields))
	for k, f := range fields {
		v, err := s.float(f)
		if err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, nil
}

func (s *scanner) ints(fields []string) ([]int64, error) {
	out := make([]int64, len(fields))
	for k, f := range fields {
		v, err := s.int(f)
		if err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, nil
}
