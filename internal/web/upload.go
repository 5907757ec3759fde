package web

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/JonMunkholm/BitSlicer/internal/bits"
	"github.com/JonMunkholm/BitSlicer/internal/core"
	"github.com/JonMunkholm/BitSlicer/internal/table"
)

// multipartMemory is how much of a multipart form is buffered in memory
// before spilling to temp files.
const multipartMemory = 32 << 20

// formOverhead allows for multipart boundaries and plan fields on top of
// the file itself.
const formOverhead = 1 << 20

// upload is a parsed multipart request: the file plus the plan fields.
type upload struct {
	FileName string
	Data     []byte
	Read     table.ReadOptions
	Plan     core.PlanRequest
}

// readUpload parses a multipart form with a "file" part. Plan fields are
// optional so the same parser serves inspect, plan and job creation.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) (*upload, error) {
	maxSize := s.cfg.Jobs.MaxFileSize
	r.Body = http.MaxBytesReader(w, r.Body, maxSize+formOverhead)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			return nil, fmt.Errorf("%w: limit is %d bytes", core.ErrFileTooLarge, maxSize)
		}
		return nil, fmt.Errorf("%w: invalid multipart form", core.ErrNoFile)
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, core.ErrNoFile
	}
	defer file.Close()

	if header.Size > maxSize {
		return nil, fmt.Errorf("%w: %d bytes exceeds %d byte limit", core.ErrFileTooLarge, header.Size, maxSize)
	}

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}

	u := &upload{
		FileName: header.Filename,
		Data:     data,
		Read: table.ReadOptions{
			Sheet: r.FormValue("sheet"),
		},
	}
	if v := r.FormValue("no_header"); v != "" {
		u.Read.NoHeader, _ = strconv.ParseBool(v)
	}

	u.Plan, err = planFromForm(r)
	if err != nil {
		return nil, err
	}
	return u, nil
}

// table parses the uploaded bytes.
func (u *upload) table() (*table.Table, error) {
	format, err := table.FormatFromName(u.FileName)
	if err != nil {
		return nil, err
	}
	return table.Read(bytes.NewReader(u.Data), u.FileName, format, u.Read)
}

// planFromForm reads the plan fields of a parsed form.
//
//	column     column to slice
//	mode       uniform, explicit or layout (inferred when empty)
//	chunk_size uniform chunk width
//	widths     explicit widths, e.g. "12,12,8"
//	layout     registered layout name
//	names      comma-separated field names
//	known      column=bits pairs, repeatable
func planFromForm(r *http.Request) (core.PlanRequest, error) {
	req := core.PlanRequest{
		Column: strings.TrimSpace(r.FormValue("column")),
		Mode:   core.PlanMode(strings.TrimSpace(r.FormValue("mode"))),
		Widths: r.FormValue("widths"),
		Layout: strings.TrimSpace(r.FormValue("layout")),
		Names:  core.SplitNames(r.FormValue("names")),
	}

	if v := strings.TrimSpace(r.FormValue("chunk_size")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return req, fmt.Errorf("%w: %q", bits.ErrInvalidChunkSize, v)
		}
		req.ChunkSize = n
	}

	known, err := core.ParseKnown(r.Form["known"])
	if err != nil {
		return req, err
	}
	if len(known) > 0 {
		req.Known = known
	}
	return req, nil
}
