package anki

import (
	"archive/zip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/eikowagenknecht/srs-converter-sub002/pkg/db"
	"github.com/eikowagenknecht/srs-converter-sub002/pkg/issues"
	"github.com/eikowagenknecht/srs-converter-sub002/pkg/srs"
)

var (
	ErrPackageClosed   = errors.New("package is closed")
	ErrMediaNotFound   = errors.New("media file not found")
	ErrInvalidFilename = errors.New("invalid media filename")
)

// Package is an Anki package unpacked into a private working directory.
// Close removes the directory; a closed package cannot be used again.
type Package struct {
	workDir    string
	collection *Collection
	media      map[string]string
	logger     *zap.SugaredLogger
	closed     bool
}

// NewPackage returns an empty legacy2 package containing only the Default deck.
func NewPackage(ctx context.Context, opts ...Option) (*Package, error) {
	o := newOptions(opts)
	p, err := newWorkspace(o)
	if err != nil {
		return nil, err
	}
	col, err := CreateCollection(ctx, p.collectionPath())
	if err != nil {
		p.Close()
		return nil, err
	}
	p.collection = col
	return p, nil
}

func newWorkspace(o *options) (*Package, error) {
	dir, err := os.MkdirTemp(o.tempDir, "srsconv-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create working directory: %w", err)
	}
	if err := os.Mkdir(filepath.Join(dir, "media"), 0o700); err != nil {
		os.RemoveAll(dir)
		return nil, fmt.Errorf("failed to create media directory: %w", err)
	}
	return &Package{workDir: dir, media: make(map[string]string), logger: o.logger}, nil
}

func (p *Package) collectionPath() string {
	return filepath.Join(p.workDir, MemberCollection)
}

func (p *Package) mediaPath(key string) string {
	return filepath.Join(p.workDir, "media", key)
}

// ReadPackage loads the package file at path. Container problems are
// reported as critical issues and yield a failure result.
func ReadPackage(ctx context.Context, path string, opts ...Option) issues.Result[*Package] {
	o := newOptions(opts)
	c := o.collector()
	p := readPackageFile(ctx, path, o, c)
	if p == nil {
		return issues.CreateFailureResult[*Package](c)
	}
	return issues.CreateResult(c, p)
}

// ReadPackageBytes is ReadPackage for a package already in memory.
func ReadPackageBytes(ctx context.Context, data []byte, opts ...Option) issues.Result[*Package] {
	o := newOptions(opts)
	c := o.collector()
	p := loadPackage(ctx, data, o, c)
	if p == nil {
		return issues.CreateFailureResult[*Package](c)
	}
	return issues.CreateResult(c, p)
}

// ConvertPackageFile reads the package at path and converts it to the
// universal model, reporting issues of both stages in one result.
func ConvertPackageFile(ctx context.Context, path string, opts ...Option) issues.Result[*srs.Package] {
	o := newOptions(opts)
	c := o.collector()
	p := readPackageFile(ctx, path, o, c)
	if p == nil {
		return issues.CreateFailureResult[*srs.Package](c)
	}
	defer p.Close()

	out := toUniversal(ctx, p.collection, p.media, o, c)
	if out == nil {
		return issues.CreateFailureResult[*srs.Package](c)
	}
	return issues.CreateResult(c, out)
}

func readPackageFile(ctx context.Context, path string, o *options, c *issues.Collector) *Package {
	data, err := os.ReadFile(path)
	if err != nil {
		c.Critical(fmt.Sprintf("cannot read package file: %v", err), issues.Details{ItemType: issues.ItemPackage})
		return nil
	}
	return loadPackage(ctx, data, o, c)
}

func loadPackage(ctx context.Context, data []byte, o *options, c *issues.Collector) *Package {
	v := validateArchive(data, c)
	if v == nil {
		return nil
	}

	p, err := newWorkspace(o)
	if err != nil {
		packageIssue(c, "%v", err)
		return nil
	}
	if err := os.WriteFile(p.collectionPath(), v.collection, 0o600); err != nil {
		p.Close()
		packageIssue(c, "failed to extract %s: %v", MemberCollection, err)
		return nil
	}

	col, err := OpenCollection(p.collectionPath())
	if err != nil {
		p.Close()
		packageIssue(c, "invalid database: %v", err)
		return nil
	}
	p.collection = col

	missing, err := db.MissingTables(col.DB())
	if err != nil {
		p.Close()
		packageIssue(c, "invalid database: %v", err)
		return nil
	}
	if len(missing) > 0 {
		p.Close()
		packageIssue(c, "missing required tables: %s", strings.Join(missing, ", "))
		return nil
	}
	if err := db.CheckSchemaVersion(col.DB(), MemberCollection, db.TargetSchemaVersion); err != nil {
		p.Close()
		packageIssue(c, "invalid database: %v", err)
		return nil
	}

	if err := p.extractMedia(v, c); err != nil {
		p.Close()
		packageIssue(c, "failed to extract media: %v", err)
		return nil
	}

	o.logger.Debugw("Loaded package", "workDir", p.workDir, "version", v.version.String(), "media", len(p.media))
	return p
}

// extractMedia copies the mapped media members into the working directory.
// Absent members and repeated filenames are reported and skipped.
func (p *Package) extractMedia(v *validatedArchive, c *issues.Collector) error {
	keys := make([]string, 0, len(v.media))
	for k := range v.media {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return mediaKeyLess(keys[i], keys[j]) })

	seen := make(map[string]bool, len(keys))
	for _, key := range keys {
		name := v.media[key]
		if err := checkMediaFilename(name); err != nil {
			c.Warning(fmt.Sprintf("media entry %q has an unusable filename %q: %v", key, name, err), issues.Details{ItemType: issues.ItemMedia, OriginalData: name})
			continue
		}
		if seen[name] {
			c.Warning(fmt.Sprintf("media file %q is listed more than once", name), issues.Details{ItemType: issues.ItemMedia, OriginalData: key})
			continue
		}
		if !v.archive.Has(key) {
			c.Warning(fmt.Sprintf("media file %q (member %q) is missing from the archive", name, key), issues.Details{ItemType: issues.ItemMedia, OriginalData: name})
			continue
		}
		if err := copyMember(v.archive, key, p.mediaPath(key)); err != nil {
			c.Warning(fmt.Sprintf("media file %q could not be read: %v", name, err), issues.Details{ItemType: issues.ItemMedia, OriginalData: name})
			continue
		}
		seen[name] = true
		p.media[key] = name
	}
	return nil
}

func copyMember(a *Archive, key, dst string) error {
	rc, err := a.OpenMember(key)
	if err != nil {
		return err
	}
	defer rc.Close()

	f, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, rc); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func mediaKeyLess(a, b string) bool {
	ai, aerr := strconv.Atoi(a)
	bi, berr := strconv.Atoi(b)
	if aerr == nil && berr == nil {
		return ai < bi
	}
	if (aerr == nil) != (berr == nil) {
		return aerr == nil
	}
	return a < b
}

func checkMediaFilename(name string) error {
	switch {
	case name == "", name == ".", name == "..":
		return fmt.Errorf("%w: %q", ErrInvalidFilename, name)
	case strings.ContainsAny(name, "/\\\x00"):
		return fmt.Errorf("%w: %q contains a path separator", ErrInvalidFilename, name)
	}
	return nil
}

// Collection returns the package's collection database.
func (p *Package) Collection() *Collection {
	return p.collection
}

// ToUniversal converts the package content to the universal model.
func (p *Package) ToUniversal(ctx context.Context, opts ...Option) issues.Result[*srs.Package] {
	if p.closed {
		o := newOptions(opts)
		c := o.collector()
		packageIssue(c, "%v", ErrPackageClosed)
		return issues.CreateFailureResult[*srs.Package](c)
	}
	return ToUniversal(ctx, p.collection, p.MediaFiles(), opts...)
}

// MediaFiles returns a copy of the media mapping, archive member name to
// original filename.
func (p *Package) MediaFiles() map[string]string {
	out := make(map[string]string, len(p.media))
	for k, v := range p.media {
		out[k] = v
	}
	return out
}

func (p *Package) mediaKey(filename string) (string, bool) {
	for k, v := range p.media {
		if v == filename {
			return k, true
		}
	}
	return "", false
}

// OpenMedia opens the media file stored under its original filename.
func (p *Package) OpenMedia(filename string) (io.ReadCloser, error) {
	if p.closed {
		return nil, ErrPackageClosed
	}
	key, ok := p.mediaKey(filename)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMediaNotFound, filename)
	}
	return os.Open(p.mediaPath(key))
}

// AddMedia stores r under filename, replacing an existing file of that name.
func (p *Package) AddMedia(filename string, r io.Reader) error {
	if p.closed {
		return ErrPackageClosed
	}
	if err := checkMediaFilename(filename); err != nil {
		return err
	}

	key, ok := p.mediaKey(filename)
	if !ok {
		next := 0
		for k := range p.media {
			if n, err := strconv.Atoi(k); err == nil && n >= next {
				next = n + 1
			}
		}
		key = strconv.Itoa(next)
	}

	f, err := os.OpenFile(p.mediaPath(key), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("failed to create media file %q: %w", filename, err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return fmt.Errorf("failed to write media file %q: %w", filename, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to write media file %q: %w", filename, err)
	}
	p.media[key] = filename
	return nil
}

// Encode writes the package as a zip archive. Media members are renumbered
// from 0 in filename order.
func (p *Package) Encode(w io.Writer) error {
	if p.closed {
		return ErrPackageClosed
	}

	zw := zip.NewWriter(w)

	if err := addFileMember(zw, MemberCollection, p.collectionPath()); err != nil {
		return err
	}

	type entry struct{ key, name string }
	entries := make([]entry, 0, len(p.media))
	for k, v := range p.media {
		entries = append(entries, entry{k, v})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].name < entries[j].name })

	mapping := make(map[string]string, len(entries))
	for i, e := range entries {
		member := strconv.Itoa(i)
		if err := addFileMember(zw, member, p.mediaPath(e.key)); err != nil {
			return err
		}
		mapping[member] = e.name
	}

	mediaJSON, err := json.Marshal(mapping)
	if err != nil {
		return fmt.Errorf("failed to encode media mapping: %w", err)
	}
	if err := addBytesMember(zw, MemberMedia, mediaJSON); err != nil {
		return err
	}
	if err := addBytesMember(zw, MemberMeta, encodeMeta(SupportedVersion)); err != nil {
		return err
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("failed to finish archive: %w", err)
	}
	return nil
}

func addFileMember(zw *zip.Writer, name, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", name, err)
	}
	defer f.Close()

	w, err := zw.Create(name)
	if err != nil {
		return fmt.Errorf("failed to add %s: %w", name, err)
	}
	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	return nil
}

func addBytesMember(zw *zip.Writer, name string, b []byte) error {
	w, err := zw.Create(name)
	if err != nil {
		return fmt.Errorf("failed to add %s: %w", name, err)
	}
	if _, err := w.Write(b); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	return nil
}

// Save writes the package to path, replacing any existing file.
func (p *Package) Save(path string) error {
	if p.closed {
		return ErrPackageClosed
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".srsconv-*.apkg")
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	tmpName := tmp.Name()

	if err := p.Encode(tmp); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to write output file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to move output file into place: %w", err)
	}
	return nil
}

// Close releases the database and removes the working directory. It is
// safe to call more than once.
func (p *Package) Close() error {
	if p.closed {
		return nil
	}
	p.closed = true

	var errs []error
	if p.collection != nil {
		if err := p.collection.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := os.RemoveAll(p.workDir); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
