// Package viewstate reads and writes gvwstate.dat, the one file the
// replication core keeps at its external boundary: a UTF-8, line-oriented
// record of the local node's identity and its last-known view (spec.md
// §6). Writes are atomic: write-to-temp, fsync, rename, fsync the
// directory, grounded on node/store/manifest.go's writeManifestAtomic.
package viewstate

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

const fileName = "gvwstate.dat"

// Member is one entry in a view's membership list.
type Member struct {
	UUID      uuid.UUID
	SegmentID int
}

// ViewID identifies a view: a type character (the view kind, e.g. 'P'
// for primary or 'N' for non-primary), the uuid of the node that
// installed it, and a monotonic sequence number.
type ViewID struct {
	Type byte
	UUID uuid.UUID
	Seq  int64
}

// ViewState is the full contents of gvwstate.dat.
type ViewState struct {
	MyUUID    uuid.UUID
	View      ViewID
	Bootstrap bool
	Members   []Member
}

// Path returns the gvwstate.dat path under baseDir.
func Path(baseDir string) string {
	return filepath.Join(baseDir, fileName)
}

// WriteFile atomically replaces gvwstate.dat under baseDir with vs's
// serialized form.
func WriteFile(baseDir string, vs ViewState) error {
	var b strings.Builder
	fmt.Fprintf(&b, "my_uuid: %s\n", vs.MyUUID)
	b.WriteString("#vwbeg\n")
	fmt.Fprintf(&b, "view_id: %c %s %d\n", vs.View.Type, vs.View.UUID, vs.View.Seq)
	if vs.Bootstrap {
		b.WriteString("bootstrap: 1\n")
	} else {
		b.WriteString("bootstrap: 0\n")
	}
	for _, m := range vs.Members {
		fmt.Fprintf(&b, "member: %s %d\n", m.UUID, m.SegmentID)
	}
	b.WriteString("#vwend\n")

	final := Path(baseDir)
	tmp := final + ".tmp"

	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("viewstate: open tmp: %w", err)
	}
	_, werr := f.WriteString(b.String())
	serr := f.Sync()
	cerr := f.Close()
	if werr != nil {
		return fmt.Errorf("viewstate: write tmp: %w", werr)
	}
	if serr != nil {
		return fmt.Errorf("viewstate: fsync tmp: %w", serr)
	}
	if cerr != nil {
		return fmt.Errorf("viewstate: close tmp: %w", cerr)
	}
	if err := os.Rename(tmp, final); err != nil {
		return fmt.Errorf("viewstate: rename: %w", err)
	}

	d, err := os.Open(baseDir)
	if err != nil {
		return fmt.Errorf("viewstate: fsync dir open: %w", err)
	}
	if err := d.Sync(); err != nil {
		_ = d.Close()
		return fmt.Errorf("viewstate: fsync dir: %w", err)
	}
	if err := d.Close(); err != nil {
		return fmt.Errorf("viewstate: fsync dir close: %w", err)
	}
	return nil
}

// ReadFile parses gvwstate.dat under baseDir.
func ReadFile(baseDir string) (ViewState, error) {
	f, err := os.Open(Path(baseDir))
	if err != nil {
		return ViewState{}, fmt.Errorf("viewstate: open: %w", err)
	}
	defer f.Close()

	var vs ViewState
	inView := false
	sawViewID := false
	sawBootstrap := false

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		switch {
		case line == "#vwbeg":
			inView = true
		case line == "#vwend":
			inView = false
		case strings.HasPrefix(line, "my_uuid:"):
			id, err := uuid.Parse(strings.TrimSpace(strings.TrimPrefix(line, "my_uuid:")))
			if err != nil {
				return ViewState{}, fmt.Errorf("viewstate: my_uuid: %w", err)
			}
			vs.MyUUID = id
		case strings.HasPrefix(line, "view_id:") && inView:
			fields := strings.Fields(strings.TrimPrefix(line, "view_id:"))
			if len(fields) != 3 {
				return ViewState{}, fmt.Errorf("viewstate: malformed view_id line %q", line)
			}
			id, err := uuid.Parse(fields[1])
			if err != nil {
				return ViewState{}, fmt.Errorf("viewstate: view_id uuid: %w", err)
			}
			seq, err := strconv.ParseInt(fields[2], 10, 64)
			if err != nil {
				return ViewState{}, fmt.Errorf("viewstate: view_id seq: %w", err)
			}
			vs.View = ViewID{Type: fields[0][0], UUID: id, Seq: seq}
			sawViewID = true
		case strings.HasPrefix(line, "bootstrap:") && inView:
			val := strings.TrimSpace(strings.TrimPrefix(line, "bootstrap:"))
			vs.Bootstrap = val == "1"
			sawBootstrap = true
		case strings.HasPrefix(line, "member:") && inView:
			fields := strings.Fields(strings.TrimPrefix(line, "member:"))
			if len(fields) != 2 {
				return ViewState{}, fmt.Errorf("viewstate: malformed member line %q", line)
			}
			id, err := uuid.Parse(fields[0])
			if err != nil {
				return ViewState{}, fmt.Errorf("viewstate: member uuid: %w", err)
			}
			seg, err := strconv.Atoi(fields[1])
			if err != nil {
				return ViewState{}, fmt.Errorf("viewstate: member segment: %w", err)
			}
			vs.Members = append(vs.Members, Member{UUID: id, SegmentID: seg})
		}
	}
	if err := scanner.Err(); err != nil {
		return ViewState{}, fmt.Errorf("viewstate: scan: %w", err)
	}
	if !sawViewID || !sawBootstrap {
		return ViewState{}, fmt.Errorf("viewstate: missing required view_id/bootstrap fields")
	}
	return vs, nil
}
