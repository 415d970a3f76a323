// pivotsql is a small shell around the engine: it runs SQL from a file,
// a -c argument, or an interactive prompt, with optional CSV imports.
package main

import (
	"bufio"
	"fmt"
	"log"
	"os"
	"strings"

	flags "github.com/jessevdk/go-flags"
	"github.com/mattn/go-runewidth"
	"golang.org/x/term"

	pivot "github.com/vjrajchauhan/pivot-engine"
	"github.com/vjrajchauhan/pivot-engine/value"
)

type options struct {
	File    string   `short:"f" long:"file" description:"Run statements from a SQL file"`
	Command string   `short:"c" long:"command" description:"Run a single SQL command and exit"`
	CSV     []string `long:"csv" description:"Load a CSV file as a table (name=path)" value-name:"NAME=PATH"`
	NoAlign bool     `long:"no-align" description:"Print rows as tab-separated values"`
	Version bool     `long:"version" description:"Print version and exit"`
}

const version = "0.3.0"

func main() {
	log.SetFlags(0)
	log.SetPrefix("pivotsql: ")

	var opts options
	parser := flags.NewParser(&opts, flags.HelpFlag|flags.PassDoubleDash)
	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			fmt.Print(err)
			os.Exit(0)
		}
		log.Fatal(err)
	}

	if opts.Version {
		fmt.Println(version)
		return
	}

	db := pivot.New()

	for _, spec := range opts.CSV {
		name, path, ok := strings.Cut(spec, "=")
		if !ok {
			log.Fatalf("invalid --csv value %q (want name=path)", spec)
		}
		f, err := os.Open(path)
		if err != nil {
			log.Fatal(err)
		}
		err = db.LoadCSV(name, f, pivot.CSVOptions{Delimiter: ',', HasHeader: true})
		f.Close()
		if err != nil {
			log.Fatalf("load %s: %v", path, err)
		}
	}

	switch {
	case opts.Command != "":
		if err := runScript(db, opts.Command, opts.NoAlign); err != nil {
			log.Fatal(err)
		}
	case opts.File != "":
		data, err := os.ReadFile(opts.File)
		if err != nil {
			log.Fatal(err)
		}
		if err := runScript(db, string(data), opts.NoAlign); err != nil {
			log.Fatal(err)
		}
	default:
		repl(db, opts.NoAlign)
	}
}

func runScript(db *pivot.DB, sql string, noAlign bool) error {
	stmts, err := pivot.ParseAll(sql)
	if err != nil {
		return err
	}
	for _, stmt := range stmts {
		res, err := db.Engine().ExecuteStmt(stmt)
		if err != nil {
			return err
		}
		printResult(res, noAlign)
	}
	return nil
}

func repl(db *pivot.DB, noAlign bool) {
	interactive := term.IsTerminal(int(os.Stdin.Fd()))
	if interactive {
		fmt.Printf("pivotsql %s\nType SQL statements terminated by ';'.\n", version)
	}

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 1<<20), 1<<24)

	var buf strings.Builder
	for {
		if interactive {
			if buf.Len() == 0 {
				fmt.Print("pivot> ")
			} else {
				fmt.Print("   ... ")
			}
		}
		if !scanner.Scan() {
			break
		}
		line := scanner.Text()
		buf.WriteString(line)
		buf.WriteByte('\n')

		if !strings.Contains(line, ";") {
			continue
		}

		sql := buf.String()
		buf.Reset()
		res, err := db.ExecuteScript(sql)
		if err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			continue
		}
		printResult(res, noAlign)
	}
}

func printResult(res *pivot.QueryResult, noAlign bool) {
	if res == nil {
		return
	}
	if res.RowCount() == 0 && res.Status != "" {
		fmt.Println(res.Status)
		return
	}

	cells := make([][]string, 0, res.RowCount()+1)
	cells = append(cells, res.Columns)
	for _, row := range res.Rows {
		line := make([]string, len(row))
		for i, v := range row {
			line[i] = renderCell(v)
		}
		cells = append(cells, line)
	}

	if noAlign {
		for _, line := range cells {
			fmt.Println(strings.Join(line, "\t"))
		}
		return
	}

	widths := make([]int, len(res.Columns))
	for _, line := range cells {
		for i, cell := range line {
			if w := runewidth.StringWidth(cell); w > widths[i] {
				widths[i] = w
			}
		}
	}

	printLine := func(line []string) {
		var b strings.Builder
		for i, cell := range line {
			if i > 0 {
				b.WriteString(" | ")
			}
			b.WriteString(runewidth.FillRight(cell, widths[i]))
		}
		fmt.Println(strings.TrimRight(b.String(), " "))
	}

	printLine(cells[0])
	var sep []string
	for _, w := range widths {
		sep = append(sep, strings.Repeat("-", w))
	}
	fmt.Println(strings.Join(sep, "-+-"))
	for _, line := range cells[1:] {
		printLine(line)
	}
	fmt.Printf("(%d rows)\n", res.RowCount())
}

func renderCell(v value.Value) string {
	if v.IsNull() {
		return ""
	}
	return v.Text()
}
