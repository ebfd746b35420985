// Package whitelist reads whitelist source files and loads their entries
// into a store. A source is a JSON object mapping list names to entry
// arrays; each entry carries a "name" plus arbitrary string attributes.
package whitelist

import (
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"os"
	"regexp"
	"sort"

	"github.com/google/uuid"

	"greyd/internal/logging"
	"greyd/internal/store"
)

var wlog = logging.For("whitelist")

// Entry is one whitelist member. Attrs holds everything from the source
// except the name; a "regex" attribute marks a pattern entry.
type Entry struct {
	Name  string
	Attrs map[string]string
}

// List is a named whitelist with its members in source order.
type List struct {
	Name    string
	Entries []Entry
}

// Parse decodes a whitelist source. Entries without a name get a generated
// uuid. Pattern entries (a "regex" attribute) are rejected unless allowRegex
// is set, and their pattern must compile.
func Parse(r io.Reader, allowRegex bool) ([]List, error) {
	var raw map[string][]map[string]string
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decoding whitelist source: %w", err)
	}

	names := make([]string, 0, len(raw))
	for name := range raw {
		names = append(names, name)
	}
	sort.Strings(names)

	var lists []List
	for _, name := range names {
		list := List{Name: name}
		for _, attrs := range raw[name] {
			entry := Entry{Attrs: make(map[string]string, len(attrs))}
			for k, v := range attrs {
				if k == "name" {
					entry.Name = v
					continue
				}
				entry.Attrs[k] = v
			}
			if entry.Name == "" {
				entry.Name = uuid.NewString()
			}
			if pattern, ok := entry.Attrs["regex"]; ok {
				if !allowRegex {
					return nil, fmt.Errorf("whitelist %q entry %q: regex entries are disabled", name, entry.Name)
				}
				if _, err := regexp.Compile(pattern); err != nil {
					return nil, fmt.Errorf("whitelist %q entry %q: %w", name, entry.Name, err)
				}
			}
			list.Entries = append(list.Entries, entry)
		}
		lists = append(lists, list)
	}
	return lists, nil
}

// Load reads and parses the source named by a file:// locator or plain
// filesystem path.
func Load(locator string, allowRegex bool) ([]List, error) {
	u, err := url.Parse(locator)
	if err != nil {
		return nil, fmt.Errorf("parsing whitelist locator: %w", err)
	}
	path := locator
	switch u.Scheme {
	case "", "file":
		if u.Path != "" {
			path = u.Path
		}
	default:
		return nil, fmt.Errorf("whitelist locator %s: unsupported scheme %q", locator, u.Scheme)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening whitelist source: %w", err)
	}
	defer f.Close()
	return Parse(f, allowRegex)
}

// Import writes every entry as list-name/entry-name with the remaining
// attributes as a JSON value, then saves the store. Returns the number of
// entries written.
func Import(st store.Store, lists []List) (int, error) {
	written := 0
	for _, list := range lists {
		for _, entry := range list.Entries {
			value, err := json.Marshal(entry.Attrs)
			if err != nil {
				return written, fmt.Errorf("encoding whitelist entry %q: %w", entry.Name, err)
			}
			key := list.Name + "/" + entry.Name
			if err := st.Update(key, string(value)); err != nil {
				return written, err
			}
			written++
		}
		wlog.Info("imported whitelist", "list", list.Name, "entries", len(list.Entries))
	}
	if err := st.Save(); err != nil {
		return written, err
	}
	return written, nil
}
