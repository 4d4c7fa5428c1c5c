package persist

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// folderSep is the separator used for folder paths stored in session rows.
// It is independent of the platform separator, which is injected via
// PathBuilder.Sep.
const folderSep = "/"

// PathBuilder derives a session's on-disk location from its id and folder
// path, and inverts that mapping on load.
//
// The mapping is bidirectional: Extract(Build(id, folder)) == (id, folder)
// for every id and folder the system can produce, including UUID ids and
// folders with any number of segments.
type PathBuilder struct {
	// Sep is the platform path separator, e.g. string(filepath.Separator).
	Sep string
}

// Build returns the session directory path relative to the collection
// root. A session with an empty folder path lives at the root; folder
// segments become nested directories. Segments are NFC-normalized so the
// same folder name always maps to the same directory.
func (pb PathBuilder) Build(id, folder string) string {
	segments := pb.folderSegments(folder)
	segments = append(segments, id)
	return strings.Join(segments, pb.Sep)
}

// Extract inverts Build: the last path segment is the session id, the rest
// is the folder path.
func (pb PathBuilder) Extract(rel string) (id, folder string) {
	segments := strings.Split(rel, pb.Sep)
	id = segments[len(segments)-1]
	folder = strings.Join(segments[:len(segments)-1], folderSep)
	return id, folder
}

func (pb PathBuilder) folderSegments(folder string) []string {
	if folder == "" {
		return nil
	}
	raw := strings.Split(folder, folderSep)
	segments := make([]string, 0, len(raw))
	for _, s := range raw {
		if s == "" {
			continue
		}
		segments = append(segments, norm.NFC.String(s))
	}
	return segments
}
