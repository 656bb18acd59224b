// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	md2man "github.com/cpuguy83/go-md2man/v2/md2man"
)

// docgen reads docs/commands/<cmd>.md and writes
//   - docs/man/share/man1/tennisbet-<cmd>.1, the whole page through md2man
//   - docs/tldr/tennisbet-<cmd>.md, the summary plus the "Examples" block

const (
	binary  = "tennisbet"
	homeURL = "https://github.com/staranto/tennisbet"
)

func main() {
	var (
		root          string
		onlyIfChanged bool
	)
	flag.StringVar(&root, "root", ".", "repo root")
	flag.BoolVar(&onlyIfChanged, "only-if-changed", true, "only write files if content changed")
	flag.Parse()

	n, err := generate(root, onlyIfChanged)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Printf("generated docs for %d commands\n", n)
}

// generate renders every command page under root and returns how many it
// processed.
func generate(root string, onlyIfChanged bool) (int, error) {
	commandsDir := filepath.Join(root, "docs", "commands")
	manDir := filepath.Join(root, "docs", "man", "share", "man1")
	tldrDir := filepath.Join(root, "docs", "tldr")

	for _, d := range []string{manDir, tldrDir} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return 0, fmt.Errorf("creating %s: %w", d, err)
		}
	}

	entries, err := os.ReadDir(commandsDir)
	if err != nil {
		return 0, fmt.Errorf("reading commands dir: %w", err)
	}

	processed := 0
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".md") {
			continue
		}
		cmd := strings.TrimSuffix(e.Name(), ".md")

		raw, err := os.ReadFile(filepath.Join(commandsDir, e.Name()))
		if err != nil {
			return processed, err
		}

		manPath := filepath.Join(manDir, fmt.Sprintf("%s-%s.1", binary, cmd))
		if err := writeFileIfChanged(manPath, md2man.Render(raw), onlyIfChanged); err != nil {
			return processed, fmt.Errorf("man page for %s: %w", cmd, err)
		}

		page := parsePage(string(raw))
		tldrPath := filepath.Join(tldrDir, fmt.Sprintf("%s-%s.md", binary, cmd))
		if err := writeFileIfChanged(tldrPath, []byte(page.tldr(cmd)), onlyIfChanged); err != nil {
			return processed, fmt.Errorf("tldr page for %s: %w", cmd, err)
		}

		processed++
	}

	if processed == 0 {
		return 0, fmt.Errorf("no command markdown found under %s", commandsDir)
	}
	return processed, nil
}

func writeFileIfChanged(path string, content []byte, onlyIfChanged bool) error {
	if onlyIfChanged {
		old, err := os.ReadFile(path)
		switch {
		case err == nil && bytes.Equal(bytes.TrimSpace(old), bytes.TrimSpace(content)):
			return nil
		case err != nil && !errors.Is(err, fs.ErrNotExist):
			return err
		}
	}
	return os.WriteFile(path, content, 0o644)
}

type example struct {
	Desc string
	Cmd  string
}

type page struct {
	Title    string
	Summary  string
	Examples []example
}

var (
	h1Re      = regexp.MustCompile(`(?m)^#\s+(.+)$`)
	sectionRe = regexp.MustCompile(`(?m)^##\s+(.+)$`)
)

// section returns the body of the "## name" section, up to the next "##".
func section(md, name string) string {
	locs := sectionRe.FindAllStringSubmatchIndex(md, -1)
	for i, loc := range locs {
		if !strings.EqualFold(strings.TrimSpace(md[loc[2]:loc[3]]), name) {
			continue
		}
		end := len(md)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		return md[loc[1]:end]
	}
	return ""
}

// parsePage pulls the title, the first paragraph of "Summary" and the commented
// commands of the first code block under "Examples".
func parsePage(md string) page {
	var p page
	if m := h1Re.FindStringSubmatch(md); m != nil {
		p.Title = strings.TrimSpace(m[1])
	}

	var para []string
	for _, ln := range strings.Split(section(md, "Summary"), "\n") {
		ln = strings.TrimSpace(ln)
		if ln == "" {
			if len(para) > 0 {
				break
			}
			continue
		}
		para = append(para, ln)
	}
	p.Summary = strings.Join(para, " ")

	body := section(md, "Examples")
	if start := strings.Index(body, "```"); start >= 0 {
		body = body[start+3:]
		if nl := strings.Index(body, "\n"); nl >= 0 {
			body = body[nl+1:]
		}
		if end := strings.Index(body, "```"); end >= 0 {
			body = body[:end]
		}
		desc := ""
		for _, ln := range strings.Split(body, "\n") {
			ln = strings.TrimSpace(ln)
			switch {
			case ln == "":
			case strings.HasPrefix(ln, "#"):
				desc = strings.TrimSpace(strings.TrimLeft(ln, "#"))
			default:
				if desc == "" {
					desc = "Example"
				}
				p.Examples = append(p.Examples, example{Desc: desc, Cmd: strings.Join(strings.Fields(ln), " ")})
				desc = ""
			}
		}
	}
	return p
}

func (p page) tldr(cmd string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s-%s\n\n", binary, cmd)

	summary := p.Summary
	if summary == "" {
		summary = p.Title
	}
	if summary == "" {
		summary = binary + " " + cmd
	}
	fmt.Fprintf(&b, "> %s\n> More information: %s.\n\n", summary, homeURL)

	exs := p.Examples
	if len(exs) == 0 {
		exs = []example{{Desc: "Show help for the command", Cmd: fmt.Sprintf("%s %s --help", binary, cmd)}}
	}
	for i, ex := range exs {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "- %s:\n\n`%s`\n", ex.Desc, ex.Cmd)
	}
	return b.String()
}
