// Package syscalls loads per-architecture syscall tables from tab-separated
// files and answers lookups by syscall name or number. One file per
// architecture; the first line names the columns, the second column is the
// syscall name.
package syscalls

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Entry is one syscall row, column name to value, preserving column order.
type Entry struct {
	columns []string
	values  map[string]string
}

// Get returns the value for a column, or "".
func (e *Entry) Get(column string) string { return e.values[column] }

// Info renders the entry as fixed-width "column : value" lines.
func (e *Entry) Info() string {
	var b strings.Builder
	for _, col := range e.columns {
		fmt.Fprintf(&b, "%-15s : %s\n", col, e.values[col])
	}
	return strings.TrimRight(b.String(), "\n")
}

// Table holds all syscalls for one architecture.
type Table struct {
	arch    string
	columns []string
	entries []*Entry
	byName  map[string]*Entry
}

// Arch returns the architecture name the table was loaded for.
func (t *Table) Arch() string { return t.arch }

// ByName looks a syscall up by name.
func (t *Table) ByName(name string) *Entry {
	return t.byName[name]
}

// ByID looks a syscall up by its number in the "#" column.
func (t *Table) ByID(id int) *Entry {
	want := fmt.Sprintf("%d", id)
	for _, e := range t.entries {
		if e.values["#"] == want {
			return e
		}
	}
	return nil
}

func parseTable(arch, path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read syscall table %s: %w", path, err)
	}
	lines := strings.Split(strings.ReplaceAll(string(data), "\r\n", "\n"), "\n")
	if len(lines) < 1 || strings.TrimSpace(lines[0]) == "" {
		return nil, fmt.Errorf("syscall table %s: missing header line", path)
	}

	columns := strings.Split(strings.TrimRight(lines[0], "\n"), "\t")
	t := &Table{
		arch:    arch,
		columns: columns,
		byName:  map[string]*Entry{},
	}

	for _, line := range lines[1:] {
		if strings.TrimSpace(line) == "" {
			continue
		}
		parts := strings.Split(strings.TrimRight(line, "\n"), "\t")
		if len(parts) < 2 {
			continue
		}
		entry := &Entry{columns: columns[:min(len(columns), len(parts))], values: map[string]string{}}
		for i := 0; i < len(parts) && i < len(columns); i++ {
			value := parts[i]
			// Definition cells carry a trailing ":line" location marker.
			if columns[i] == "Definition" {
				value = strings.SplitN(value, ":", 2)[0]
			}
			entry.values[columns[i]] = value
		}
		t.entries = append(t.entries, entry)
		t.byName[parts[1]] = entry
	}
	return t, nil
}

// Info answers syscall lookups across every architecture found in a table
// directory.
type Info struct {
	tables map[string]*Table
}

// Load parses every file in dir as one architecture table, keyed by file
// name.
func Load(dir string) (*Info, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read syscall table dir %s: %w", dir, err)
	}

	info := &Info{tables: map[string]*Table{}}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		table, err := parseTable(entry.Name(), filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		info.tables[entry.Name()] = table
	}
	return info, nil
}

// Architectures lists the loaded architecture names, sorted.
func (i *Info) Architectures() []string {
	archs := make([]string, 0, len(i.tables))
	for arch := range i.tables {
		archs = append(archs, arch)
	}
	sort.Strings(archs)
	return archs
}

// Arch returns the table for an architecture, or nil.
func (i *Info) Arch(arch string) *Table {
	return i.tables[arch]
}
