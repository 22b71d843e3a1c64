package anki

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"sort"
)

// Member names inside a package archive.
const (
	MemberCollection = "collection.anki21"
	MemberMedia      = "media"
	MemberMeta       = "meta"
)

// requiredMembers is the order in which missing members are reported.
var requiredMembers = []string{MemberMeta, MemberMedia, MemberCollection}

var ErrMemberNotFound = errors.New("member not found")

// Container gives access to the members of a package archive.
type Container interface {
	ListMembers() []string
	ReadMember(name string) ([]byte, error)
	OpenMember(name string) (io.ReadCloser, error)
}

// Archive is a Container over an in-memory zip.
type Archive struct {
	members map[string]*zip.File
	names   []string
}

var _ Container = (*Archive)(nil)

// OpenArchive parses the zip directory of data.
func OpenArchive(data []byte) (*Archive, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, err
	}
	a := &Archive{members: make(map[string]*zip.File, len(zr.File))}
	for _, f := range zr.File {
		if _, dup := a.members[f.Name]; dup {
			continue
		}
		a.members[f.Name] = f
		a.names = append(a.names, f.Name)
	}
	sort.Strings(a.names)
	return a, nil
}

// ListMembers returns the member names, sorted.
func (a *Archive) ListMembers() []string {
	return append([]string(nil), a.names...)
}

func (a *Archive) Has(name string) bool {
	_, ok := a.members[name]
	return ok
}

func (a *Archive) OpenMember(name string) (io.ReadCloser, error) {
	f, ok := a.members[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMemberNotFound, name)
	}
	return f.Open()
}

// ReadMember reads a whole member, verifying its checksum.
func (a *Archive) ReadMember(name string) ([]byte, error) {
	rc, err := a.OpenMember(name)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}
