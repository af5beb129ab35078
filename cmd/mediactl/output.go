package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dmitrymomot/mediakit/pkg/media"
)

// recordView is the printed shape of a record.
type recordView struct {
	ID        string    `json:"id" yaml:"id"`
	Owner     string    `json:"owner" yaml:"owner"`
	Group     string    `json:"group" yaml:"group"`
	Filename  string    `json:"filename" yaml:"filename"`
	URL       string    `json:"url" yaml:"url"`
	MIME      string    `json:"mime,omitempty" yaml:"mime,omitempty"`
	Size      *int64    `json:"size,omitempty" yaml:"size,omitempty"`
	Name      string    `json:"name,omitempty" yaml:"name,omitempty"`
	Alt       string    `json:"alt,omitempty" yaml:"alt,omitempty"`
	Title     string    `json:"title" yaml:"title"`
	Weight    int       `json:"weight" yaml:"weight"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
}

func viewOf(store *media.Store, rec media.Record) recordView {
	return recordView{
		ID:        rec.ID,
		Owner:     rec.Owner().String(),
		Group:     rec.Group,
		Filename:  rec.Filename,
		URL:       store.URL(rec),
		MIME:      rec.MIME,
		Size:      rec.Size,
		Name:      rec.Name,
		Alt:       rec.Alt,
		Title:     rec.DisplayTitle(),
		Weight:    rec.Weight,
		CreatedAt: rec.CreatedAt,
	}
}

type printer struct {
	format string
	w      io.Writer
}

func newPrinter(format string, w io.Writer) (*printer, error) {
	switch format {
	case "table", "json", "yaml":
		return &printer{format: format, w: w}, nil
	default:
		return nil, fmt.Errorf("unknown output format %q (want table, json or yaml)", format)
	}
}

func (p *printer) records(views []recordView) error {
	switch p.format {
	case "json":
		enc := json.NewEncoder(p.w)
		enc.SetIndent("", "  ")
		return enc.Encode(views)
	case "yaml":
		enc := yaml.NewEncoder(p.w)
		defer enc.Close()
		return enc.Encode(views)
	}

	tw := tabwriter.NewWriter(p.w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tGROUP\tWEIGHT\tSIZE\tFILENAME\tTITLE")
	for _, v := range views {
		size := "-"
		if v.Size != nil {
			size = strconv.FormatInt(*v.Size, 10)
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\t%s\n", v.ID, v.Group, v.Weight, size, v.Filename, v.Title)
	}
	return tw.Flush()
}

func (p *printer) record(v recordView) error {
	return p.records([]recordView{v})
}
