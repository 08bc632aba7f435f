// pfm-decode parses a Point Forecast Matrix bulletin file and prints the
// records, day summaries, or the decoded matrix for one location.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/fatih/color"

	"github.com/chrissnell/pfmforecast/internal/constants"
	"github.com/chrissnell/pfmforecast/internal/forecast"
	"github.com/chrissnell/pfmforecast/internal/log"
	"github.com/chrissnell/pfmforecast/internal/pfm"
)

var (
	labelColor = color.New(color.FgCyan)
	timeColor  = color.New(color.FgGreen)
	valueColor = color.New(color.FgWhite)
	emptyColor = color.New(color.FgHiBlack)
	warnColor  = color.New(color.FgYellow)
)

func main() {
	file := flag.String("file", "-", "Bulletin file to read, or - for stdin")
	location := flag.String("location", "", "Location code to decode, e.g. CTZ002")
	office := flag.String("office", "", "Issuing office; defaults to the one in the bulletin header")
	tz := flag.String("tz", "", "IANA zone hour labels are read in; defaults to the bulletin's zone")
	method := flag.String("method", pfm.DefaultMethod, "Method tag stored with each record")
	summary := flag.Bool("summary", false, "Print day summaries instead of records")
	table := flag.Bool("table", false, "Print the decoded matrix as a table")
	list := flag.Bool("list", false, "List the locations in the bulletin and exit")
	noColor := flag.Bool("no-color", false, "Disable colored output")
	debug := flag.Bool("debug", false, "Turn on debugging output")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("pfm-decode %s\n", constants.Version)
		return
	}
	if *noColor {
		color.NoColor = true
	}
	if err := log.Init(*debug); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	text, err := readBulletin(*file)
	if err != nil {
		log.Fatalf("error reading bulletin: %v", err)
	}

	if *list {
		listLocations(os.Stdout, text)
		return
	}
	if *location == "" {
		log.Fatal("-location is required unless -list is given")
	}

	var loc *time.Location
	if *tz != "" {
		if loc, err = time.LoadLocation(*tz); err != nil {
			log.Fatalf("invalid -tz: %v", err)
		}
	}

	parser := pfm.NewParser(pfm.Options{Method: *method, Office: *office, Location: loc})
	res, err := parser.ParseText(text, strings.ToUpper(*location))
	if err != nil {
		log.Fatalf("error parsing bulletin: %v", err)
	}
	for _, d := range res.Diagnostics {
		log.Debugw("bulletin diagnostic", "line", d.Line, "block", d.Block, "segment", d.Segment, "label", d.Label, "reason", d.Reason)
	}
	if !res.Found {
		log.Fatalf("location %s is not in the bulletin; try -list", strings.ToUpper(*location))
	}

	switch {
	case *table:
		printTable(os.Stdout, res)
		for _, d := range res.Diagnostics {
			if d.Block == "" || d.Block == res.Block.Code {
				warnColor.Fprintln(os.Stderr, d.String())
			}
		}
	case *summary:
		zone := loc
		if zone == nil {
			zone = res.Issued.Location()
		}
		writeJSON(os.Stdout, forecast.Aggregate(res.Records, zone))
	default:
		writeJSON(os.Stdout, res.Records)
	}
}

func readBulletin(path string) (string, error) {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return "", err
		}
		defer f.Close()
		r = f
	}
	b, err := io.ReadAll(r)
	return string(b), err
}

func listLocations(w io.Writer, text string) {
	product, blocks, _ := pfm.Split(text)
	if product.Office != "" {
		labelColor.Fprintf(w, "%s %s\n", product.Office, product.IssuedLine)
	}
	for _, b := range blocks {
		fmt.Fprintf(w, "%s  %s\n", labelColor.Sprint(b.Code), b.Name)
	}
}

func writeJSON(w io.Writer, v any) {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		log.Fatalf("error encoding output: %v", err)
	}
}

// printTable renders the matrix with one column per slot.
func printTable(w io.Writer, res pfm.Result) {
	m := res.Matrix
	width := len("WIND CHAR ")
	for _, name := range m.Order {
		width = max(width, len(name)+1)
	}

	labelColor.Fprintf(w, "%s  %s\n", res.Block.Code, res.Block.Name)
	fmt.Fprintf(w, "%-*s", width, "")
	for _, t := range m.Times {
		timeColor.Fprintf(w, "%6s", t.Format("Jan02"))
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "%-*s", width, "")
	for _, t := range m.Times {
		timeColor.Fprintf(w, "%6s", t.Format("15MST"))
	}
	fmt.Fprintln(w)

	for _, name := range m.Order {
		labelColor.Fprintf(w, "%-*s", width, name)
		for _, v := range m.Column(name) {
			if v == "" || v == pfm.Missing {
				emptyColor.Fprintf(w, "%6s", "-")
				continue
			}
			valueColor.Fprintf(w, "%6s", v)
		}
		fmt.Fprintln(w)
	}
}
