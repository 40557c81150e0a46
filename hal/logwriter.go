package hal

import "bytes"

// LogWriter adapts a Logger to io.Writer so line-oriented log encoders can
// write through it. Each Write may carry several lines.
type LogWriter struct {
	L Logger
}

func (w LogWriter) Write(p []byte) (int, error) {
	rest := p
	for len(rest) > 0 {
		line, tail, _ := bytes.Cut(rest, []byte{'\n'})
		if len(line) > 0 {
			w.L.WriteLineBytes(line)
		}
		rest = tail
	}
	return len(p), nil
}
