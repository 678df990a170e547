package safelist

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// ParseVCard reads contacts from a vCard stream and returns one RawEntry per
// telephone number, labelled DefaultLabelPrefix + the contact's formatted name.
// Contacts without a name are skipped. Numbers are returned as written; the
// Service normalizes them on import.
func ParseVCard(r io.Reader) ([]RawEntry, error) {
	var (
		out     []RawEntry
		name    string
		numbers []string
	)
	flush := func() {
		if name != "" {
			for _, n := range numbers {
				out = append(out, RawEntry{Number: n, Label: DefaultLabelPrefix + name})
			}
		}
		name, numbers = "", nil
	}

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		key, value, ok := splitProperty(line)
		if !ok {
			continue
		}
		switch key {
		case "BEGIN":
			name, numbers = "", nil
		case "FN":
			name = strings.TrimSpace(value)
		case "TEL":
			value = strings.TrimPrefix(strings.TrimSpace(value), "tel:")
			if value != "" {
				numbers = append(numbers, value)
			}
		case "END":
			flush()
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read vcard: %w", err)
	}
	flush()
	return out, nil
}

// splitProperty splits "TEL;TYPE=CELL:+61 400" into ("TEL", "+61 400").
// Group prefixes ("item1.TEL") are dropped.
func splitProperty(line string) (string, string, bool) {
	idx := strings.Index(line, ":")
	if idx <= 0 {
		return "", "", false
	}
	head, value := line[:idx], line[idx+1:]
	if semi := strings.Index(head, ";"); semi >= 0 {
		head = head[:semi]
	}
	if dot := strings.LastIndex(head, "."); dot >= 0 {
		head = head[dot+1:]
	}
	return strings.ToUpper(head), value, true
}
