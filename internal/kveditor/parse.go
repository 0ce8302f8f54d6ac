package kveditor

import "strings"

type occurrence struct {
	line  int
	value string
}

type section struct {
	tag  string
	keys map[string][]occurrence
	// insertAt is the line index new keys are inserted before: just after
	// the last non-blank line of the section.
	insertAt int
}

type document struct {
	sections  map[string]*section
	malformed []int
}

// parse splits lines into sections. A conf file is a single section with an
// empty tag; in a tagconf file lines before the first header are ignored.
func (e *Editor) parse(lines []string) document {
	doc := document{sections: make(map[string]*section)}

	var cur *section
	if e.typ == Conf {
		cur = &section{keys: make(map[string][]occurrence), insertAt: 0}
		doc.sections[""] = cur
	}

	for i, line := range lines {
		if e.typ == TagConf {
			if tag, ok := parseTag(line); ok {
				cur = doc.sections[tag]
				if cur == nil {
					cur = &section{tag: tag, keys: make(map[string][]occurrence)}
					doc.sections[tag] = cur
				}
				cur.insertAt = i + 1
				continue
			}
		}
		if cur == nil {
			continue
		}
		if strings.TrimSpace(line) != "" {
			cur.insertAt = i + 1
		}
		key, value, kind := e.dialect.split(line)
		switch kind {
		case lineKV:
			cur.keys[key] = append(cur.keys[key], occurrence{line: i, value: value})
		case lineMalformed:
			doc.malformed = append(doc.malformed, i)
		}
	}
	return doc
}

// edits collects line-level changes against the original line slice.
type edits struct {
	replace map[int]string
	drop    map[int]bool
	insert  map[int][]string
}

func newEdits() *edits {
	return &edits{
		replace: make(map[int]string),
		drop:    make(map[int]bool),
		insert:  make(map[int][]string),
	}
}

func (ed *edits) apply(lines []string) []string {
	out := make([]string, 0, len(lines))
	for i, line := range lines {
		out = append(out, ed.insert[i]...)
		if ed.drop[i] {
			continue
		}
		if r, ok := ed.replace[i]; ok {
			out = append(out, r)
			continue
		}
		out = append(out, line)
	}
	return append(out, ed.insert[len(lines)]...)
}
