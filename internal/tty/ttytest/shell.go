package ttytest

import "strings"

// ShellSim answers writes the way an interactive shell behind a pty does:
// the written line is echoed back, the command output follows, and a
// trailing "; echo X" or "&& echo X" suffix is honoured.
type ShellSim struct {
	// Prompt is printed after every command.
	Prompt string
	// Outputs maps a command to the text it prints.
	Outputs map[string]string
	// Failing lists commands that exit non-zero.
	Failing map[string]bool
	// Hang lists commands that never finish.
	Hang map[string]bool
	// NoEcho disables the echo of the written line.
	NoEcho bool
}

// Respond implements the Fake.OnWrite hook.
func (s *ShellSim) Respond(f *Fake, data []byte) {
	line := strings.TrimRight(string(data), "\n")
	if !s.NoEcho {
		f.Feed(line + "\r\n")
	}
	cmd, sep, marker := splitMarker(line)
	if s.Hang[cmd] {
		return
	}
	if out, ok := s.Outputs[cmd]; ok && out != "" {
		f.Feed(crlf(out))
	}
	if marker != "" && (sep == ";" || !s.Failing[cmd]) {
		f.Feed(marker + "\r\n")
	}
	f.Feed(s.Prompt)
}

func splitMarker(line string) (cmd, sep, marker string) {
	for _, s := range []string{";", "&&"} {
		candidate := " " + s + " echo "
		if i := strings.LastIndex(line, candidate); i >= 0 {
			return line[:i], s, strings.TrimSpace(line[i+len(candidate):])
		}
	}
	return strings.TrimSuffix(line, " &"), "", ""
}

func crlf(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\n", "\r\n")
	if !strings.HasSuffix(s, "\r\n") {
		s += "\r\n"
	}
	return s
}
