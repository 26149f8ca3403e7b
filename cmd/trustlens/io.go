package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

const previewLength = 60

// inputFlags are shared by every command that reads comment texts
type inputFlags struct {
	texts  []string
	infile string
	out    string
	pretty bool
	table  bool
}

func (f *inputFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringSliceVar(&f.texts, "text", nil, "text to analyze (repeatable)")
	cmd.Flags().StringVar(&f.infile, "infile", "", "UTF-8 file with one text per line (- for stdin)")
	cmd.Flags().StringVar(&f.out, "out", "", "write JSON output to this path (default: stdout)")
	cmd.Flags().BoolVar(&f.pretty, "pretty", false, "pretty-print JSON")
	cmd.Flags().BoolVar(&f.table, "table", false, "print a summary table instead of JSON")
	cmd.MarkFlagsMutuallyExclusive("text", "infile")
}

// load returns the texts given by --text or --infile, then positional args
func (f *inputFlags) load(stdin io.Reader, args []string) ([]string, error) {
	texts := append([]string{}, f.texts...)

	if f.infile != "" {
		var r io.Reader = stdin
		if f.infile != "-" {
			file, err := os.Open(f.infile)
			if err != nil {
				return nil, fmt.Errorf("failed to open input: %w", err)
			}
			defer file.Close()
			r = file
		}

		lines, err := readLines(r)
		if err != nil {
			return nil, err
		}
		texts = append(texts, lines...)
	}

	texts = append(texts, args...)
	if len(texts) == 0 {
		return nil, fmt.Errorf("provide --text, --infile or positional texts")
	}
	return texts, nil
}

func readLines(r io.Reader) ([]string, error) {
	var lines []string
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			lines = append(lines, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read input: %w", err)
	}
	return lines, nil
}

// writeJSON encodes v to path, or to w when path is empty
func writeJSON(w io.Writer, path string, pretty bool, v interface{}) error {
	var (
		data []byte
		err  error
	)
	if pretty {
		data, err = json.MarshalIndent(v, "", "  ")
	} else {
		data, err = json.Marshal(v)
	}
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	data = append(data, '\n')

	if path == "" {
		_, err = w.Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func newTable(w io.Writer, header table.Row) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	t.Style().Options.SeparateRows = true
	t.AppendHeader(header)
	return t
}

func preview(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if len(runes) <= previewLength {
		return text
	}
	return string(runes[:previewLength-3]) + "..."
}
