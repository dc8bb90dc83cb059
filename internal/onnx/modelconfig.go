package onnx

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// Defaults for keys missing from the model config.
const (
	DefaultTextEncoder = "bert-base-uncased"
	DefaultMaxTextLen  = 256
	DefaultNumQueries  = 900
)

// ModelConfig holds the settings the fallback backend reads from a
// GroundingDINO Python config file.
type ModelConfig struct {
	TextEncoderType string
	MaxTextLen      int
	NumQueries      int

	// Values holds every scalar assignment found, keyed by name, with
	// strings unquoted and None as "".
	Values map[string]string
}

// LoadModelConfig parses the config file at path.
func LoadModelConfig(path string) (*ModelConfig, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open model config: %w", err)
	}
	defer f.Close()

	cfg, err := ParseModelConfig(f)
	if err != nil {
		return nil, fmt.Errorf("failed to parse model config %s: %w", path, err)
	}
	return cfg, nil
}

// ParseModelConfig reads top-level `name = literal` assignments. Lists,
// dicts, tuples and other expressions are skipped, including collections
// that span several lines.
func ParseModelConfig(r io.Reader) (*ModelConfig, error) {
	cfg := &ModelConfig{Values: map[string]string{}}

	sc := bufio.NewScanner(r)
	depth := 0
	for sc.Scan() {
		line := stripComment(sc.Text())

		if depth > 0 {
			depth += bracketDelta(line)
			continue
		}
		if strings.TrimSpace(line) == "" || line[0] == ' ' || line[0] == '\t' {
			continue
		}

		name, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		name = strings.TrimSpace(name)
		value = strings.TrimSpace(value)
		if !isIdentifier(name) {
			continue
		}

		if d := bracketDelta(value); d > 0 {
			depth = d
			continue
		}

		lit, ok := parseLiteral(value)
		if !ok {
			continue
		}
		cfg.Values[name] = lit
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}

	cfg.TextEncoderType = DefaultTextEncoder
	if v := cfg.Values["text_encoder_type"]; v != "" {
		cfg.TextEncoderType = v
	}
	var err error
	if cfg.MaxTextLen, err = cfg.intValue("max_text_len", DefaultMaxTextLen); err != nil {
		return nil, err
	}
	if cfg.NumQueries, err = cfg.intValue("num_queries", DefaultNumQueries); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *ModelConfig) intValue(key string, def int) (int, error) {
	v, ok := c.Values[key]
	if !ok || v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%s must be a positive integer, got %q", key, v)
	}
	return n, nil
}

// parseLiteral returns the Go string form of a Python scalar literal.
func parseLiteral(v string) (string, bool) {
	switch v {
	case "None":
		return "", true
	case "True":
		return "true", true
	case "False":
		return "false", true
	}
	if len(v) >= 2 && (v[0] == '"' || v[0] == '\'') && v[len(v)-1] == v[0] {
		return v[1 : len(v)-1], true
	}
	if _, err := strconv.ParseFloat(v, 64); err == nil {
		return v, true
	}
	return "", false
}

func stripComment(line string) string {
	end := len(line)
	eachUnquoted(line, func(i int, c byte) bool {
		if c == '#' {
			end = i
			return false
		}
		return true
	})
	return strings.TrimRight(line[:end], " \t")
}

// bracketDelta counts opening minus closing brackets outside string literals.
func bracketDelta(s string) int {
	d := 0
	eachUnquoted(s, func(_ int, c byte) bool {
		switch c {
		case '[', '{', '(':
			d++
		case ']', '}', ')':
			d--
		}
		return true
	})
	return d
}

// eachUnquoted calls fn for each byte of s outside a quoted string until fn
// returns false. Backslash escapes inside quotes are honoured.
func eachUnquoted(s string, fn func(i int, c byte) bool) {
	inQuote := byte(0)
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case inQuote != 0:
			if c == '\\' {
				i++
			} else if c == inQuote {
				inQuote = 0
			}
		case c == '"' || c == '\'':
			inQuote = c
		default:
			if !fn(i, c) {
				return
			}
		}
	}
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, c := range s {
		letter := c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
		if !letter && (i == 0 || c < '0' || c > '9') {
			return false
		}
	}
	return true
}
