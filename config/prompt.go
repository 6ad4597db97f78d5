package config

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// Prompter asks questions on a terminal. When input is not a terminal,
// answers (including secrets) are read line by line.
type Prompter struct {
	in       *bufio.Reader
	out      io.Writer
	fd       int
	terminal bool
}

func NewPrompter(in io.Reader, out io.Writer) *Prompter {
	p := &Prompter{in: bufio.NewReader(in), out: out, fd: -1}
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		p.fd = int(f.Fd())
		p.terminal = true
	}
	return p
}

func (p *Prompter) readLine() (string, error) {
	line, err := p.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", fmt.Errorf("read input: %w", err)
	}
	return strings.TrimSpace(line), nil
}

// Ask prints label and returns the trimmed answer, or def when it is empty.
func (p *Prompter) Ask(label, def string) (string, error) {
	if def != "" {
		fmt.Fprintf(p.out, "%s [%s]: ", label, def)
	} else {
		fmt.Fprintf(p.out, "%s: ", label)
	}
	answer, err := p.readLine()
	if err != nil {
		return "", err
	}
	if answer == "" {
		return def, nil
	}
	return answer, nil
}

// Secret reads an answer without echo.
func (p *Prompter) Secret(label string) (string, error) {
	fmt.Fprintf(p.out, "%s: ", label)
	if !p.terminal {
		return p.readLine()
	}
	b, err := term.ReadPassword(p.fd)
	fmt.Fprintln(p.out)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimSpace(string(b)), nil
}

// Confirm asks a y/N question. Anything but "y" or "yes" is a no.
func (p *Prompter) Confirm(label string) (bool, error) {
	fmt.Fprintf(p.out, "%s (y/N): ", label)
	answer, err := p.readLine()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return false, nil
		}
		return false, err
	}
	switch strings.ToLower(answer) {
	case "y", "yes":
		return true, nil
	}
	return false, nil
}

// Init walks through the interactive setup and saves the result to path.
// The password goes to the OS keyring when possible.
func Init(path string, p *Prompter) (*Config, error) {
	fmt.Fprintln(p.out, "justcal configuration setup")
	fmt.Fprintln(p.out, strings.Repeat("=", 40))

	cfg := Default()
	if existing, err := LoadFile(path); err == nil {
		cfg = existing
	}

	var err error
	defURL := cfg.CalDAV.URL
	if defURL == "" {
		defURL = DefaultURL
	}
	if cfg.CalDAV.URL, err = p.Ask("CalDAV URL", defURL); err != nil {
		return nil, err
	}
	if cfg.CalDAV.Username, err = p.Ask("Username", cfg.CalDAV.Username); err != nil {
		return nil, err
	}
	if cfg.CalDAV.Username == "" {
		return nil, fmt.Errorf("%w: username is required", ErrInvalidValue)
	}

	password, err := p.Secret("Password (will be stored securely)")
	if err != nil {
		return nil, err
	}
	if password == "" {
		return nil, fmt.Errorf("%w: password is required", ErrInvalidValue)
	}
	inKeyring, err := cfg.SetPassword(password)
	if err != nil {
		return nil, err
	}
	if !inKeyring && cfg.Security.UseKeyring {
		fmt.Fprintln(p.out, "Warning: failed to store password in keyring, storing it in the config file (less secure)")
	}

	if cfg.CalDAV.Calendar, err = p.Ask("Calendar name", cfg.CalDAV.Calendar); err != nil {
		return nil, err
	}
	tz, err := p.Ask("Timezone", cfg.Preferences.Timezone)
	if err != nil {
		return nil, err
	}
	if err := cfg.Set("preferences.timezone", tz); err != nil {
		return nil, err
	}

	if err := cfg.Save(path); err != nil {
		return nil, err
	}
	return cfg, nil
}
