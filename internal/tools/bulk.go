package tools

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// BulkEntry is one line of a bulk install file:
//
//	TOOLSHED<TAB>OWNER<TAB>REPOSITORY<TAB>REVISION<TAB>SECTION
//
// An empty revision means the latest, an empty section the top level.
type BulkEntry struct {
	Reference
	Section string
}

// ReadBulk parses a bulk install file, skipping blank lines and lines
// starting with '#'.
func ReadBulk(r io.Reader) ([]BulkEntry, error) {
	var entries []BulkEntry
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimRight(scanner.Text(), "\r\n")
		if strings.TrimSpace(line) == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Split(line, "\t")
		for i := range fields {
			fields[i] = strings.TrimSpace(fields[i])
		}
		if len(fields) < 3 || fields[0] == "" || fields[1] == "" || fields[2] == "" {
			return nil, fmt.Errorf("line %d: expected TOOLSHED, OWNER and REPOSITORY separated by tabs", lineNo)
		}
		if len(fields) > 5 {
			return nil, fmt.Errorf("line %d: too many fields", lineNo)
		}

		e := BulkEntry{Reference: Reference{Toolshed: ToolshedHost(fields[0]), Owner: fields[1], Name: fields[2]}}
		if len(fields) > 3 {
			e.Revision = fields[3]
			if i := strings.Index(e.Revision, ":"); i >= 0 {
				e.Revision = e.Revision[i+1:]
			}
		}
		if len(fields) > 4 {
			e.Section = fields[4]
		}
		entries = append(entries, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

// WriteBulk writes entries in the bulk install format.
func WriteBulk(w io.Writer, entries []BulkEntry) error {
	bw := bufio.NewWriter(w)
	for _, e := range entries {
		fmt.Fprintf(bw, "%s\t%s\t%s\t%s\t%s\n", ToolshedHost(e.Toolshed), e.Owner, e.Name, e.Revision, e.Section)
	}
	return bw.Flush()
}
