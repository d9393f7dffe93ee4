package buffer

import (
	"unicode/utf8"

	"github.com/iw2rmb/loom/clock"
)

// File is the persistent backing of a buffer. Save receives an immutable
// snapshot together with the version it captures, so an implementation may
// finish the write on a background task while the buffer keeps mutating,
// reporting completion through Buffer.DidSave.
type File interface {
	Save(snapshot *Snapshot, version clock.Global) error
}

// SetFile attaches a backing file. The buffer's current state is considered
// saved.
func (b *Buffer) SetFile(f File) {
	b.file = f
	b.savedVersion = b.version.Clone()
}

// Save hands the current snapshot to the backing file and, if Save returned
// without error, marks its version saved. Hosts that persist asynchronously
// call the file themselves and invoke DidSave when the write completes.
func (b *Buffer) Save() error {
	if b.file == nil {
		return ErrNoFile
	}
	version := b.Version()
	if err := b.file.Save(b.Snapshot(), version); err != nil {
		return err
	}
	b.DidSave(version)
	return nil
}

// DidSave records that version has been persisted and notifies subscribers.
// Edits made after the saved snapshot was taken leave the buffer dirty.
func (b *Buffer) DidSave(version clock.Global) {
	b.savedVersion = version.Clone()
	b.emit(Saved{})
}

// Reload replaces the buffer text with the file's current contents, given as
// text. The replacement is expressed as a single edit over the differing
// middle of the document, so anchors in the untouched prefix and suffix keep
// their positions. The resulting version is marked saved.
func (b *Buffer) Reload(text string) ([]Operation, error) {
	old := b.Text()
	var ops []Operation
	if old != text {
		r, replacement := trimCommon(old, text)
		var err error
		ops, err = b.Edit([]Range{r}, replacement)
		if err != nil {
			return nil, err
		}
	}
	b.savedVersion = b.version.Clone()
	b.emit(Reloaded{})
	return ops, nil
}

// trimCommon strips the longest common prefix and suffix, on rune
// boundaries, and returns the range of old that must be replaced by the
// remaining middle of new.
func trimCommon(old, new string) (Range, string) {
	prefix := 0
	max := len(old)
	if len(new) < max {
		max = len(new)
	}
	for prefix < max && old[prefix] == new[prefix] {
		prefix++
	}
	for prefix > 0 {
		okOld := prefix == len(old) || utf8.RuneStart(old[prefix])
		okNew := prefix == len(new) || utf8.RuneStart(new[prefix])
		if okOld && okNew {
			break
		}
		prefix--
	}

	suffix := 0
	for suffix < max-prefix && old[len(old)-1-suffix] == new[len(new)-1-suffix] {
		suffix++
	}
	for suffix > 0 && (!utf8.RuneStart(old[len(old)-suffix]) || !utf8.RuneStart(new[len(new)-suffix])) {
		suffix--
	}

	return Range{Start: prefix, End: len(old) - suffix}, new[prefix : len(new)-suffix]
}
