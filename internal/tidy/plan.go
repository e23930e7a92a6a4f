package tidy

// PlanTree is the mutable, editable form of an OrganizationPlan. Every file
// and folder becomes a node addressed by a stable id; a file's membership is
// derived solely from its current parent id (or none, meaning unorganized),
// so it can never be duplicated across two folders.
//
// Edits never touch disk. Rebuild() derives an OrganizationPlan from the
// current tree and is idempotent: rebuilding twice without intervening edits
// yields identical output.
type PlanTree struct {
	idgen IDGenerator

	folders map[string]*folderNode
	files   map[string]*fileNode

	rootFolders []string // ordered top-level folder ids
	unorganized []string // ordered ids of files outside any folder

	version int
	stats   *GenerationStats
}

type folderNode struct {
	id        string
	parentID  string // "" for top-level folders
	name      string
	reasoning string
	folders   []string // ordered child folder ids
	files     []string // ordered child file ids
}

type fileNode struct {
	id       string
	parentID string // folder id, or "" when unorganized
	record   FileRecord
	renameTo string // "" keeps the original basename
	reason   string // why the file is unorganized; emitted only while it stays so
}

// NewPlanTree builds an editable tree from a plan.
func NewPlanTree(plan *OrganizationPlan, idgen IDGenerator) *PlanTree {
	t := &PlanTree{
		idgen:   idgen,
		folders: make(map[string]*folderNode),
		files:   make(map[string]*fileNode),
		version: plan.Version,
		stats:   plan.Stats,
	}

	var addFolder func(f *FolderSuggestion, parentID string) string
	addFolder = func(f *FolderSuggestion, parentID string) string {
		node := &folderNode{
			id:        t.idgen.New(),
			parentID:  parentID,
			name:      f.Name,
			reasoning: f.Reasoning,
		}
		t.folders[node.id] = node
		for _, rec := range f.Files {
			fn := &fileNode{
				id:       t.idgen.New(),
				parentID: node.id,
				record:   rec,
			}
			if f.Renames != nil {
				fn.renameTo = f.Renames[rec.Path]
			}
			t.files[fn.id] = fn
			node.files = append(node.files, fn.id)
		}
		for _, sub := range f.Subfolders {
			childID := addFolder(sub, node.id)
			node.folders = append(node.folders, childID)
		}
		return node.id
	}

	for _, f := range plan.Folders {
		t.rootFolders = append(t.rootFolders, addFolder(f, ""))
	}
	for i, rec := range plan.Unorganized {
		fn := &fileNode{id: t.idgen.New(), record: rec}
		if i < len(plan.UnorganizedReasons) {
			fn.reason = plan.UnorganizedReasons[i]
		}
		t.files[fn.id] = fn
		t.unorganized = append(t.unorganized, fn.id)
	}

	return t
}

// AddFile moves the file into the given folder, detaching it from wherever
// it currently lives. Unknown ids are a silent no-op: stale ids from
// concurrent drag interactions are a reachability miss, not an error.
func (t *PlanTree) AddFile(fileID, toFolderID string) {
	file, ok := t.files[fileID]
	if !ok {
		return
	}
	dest, ok := t.folders[toFolderID]
	if !ok {
		return
	}
	t.detachFile(file)
	file.parentID = dest.id
	dest.files = append(dest.files, file.id)
}

// RemoveFile detaches the file from its folder and returns it to the
// unorganized set. Unknown ids are a silent no-op.
func (t *PlanTree) RemoveFile(fileID string) {
	file, ok := t.files[fileID]
	if !ok {
		return
	}
	t.detachFile(file)
	file.parentID = ""
	t.unorganized = append(t.unorganized, file.id)
}

// MoveFile moves the file from one folder to another. It is a silent no-op
// when any endpoint id is unknown or the file is not currently in fromFolder.
func (t *PlanTree) MoveFile(fileID, fromFolderID, toFolderID string) {
	file, ok := t.files[fileID]
	if !ok {
		return
	}
	if _, ok := t.folders[fromFolderID]; !ok {
		return
	}
	if _, ok := t.folders[toFolderID]; !ok {
		return
	}
	if file.parentID != fromFolderID {
		return
	}
	t.AddFile(fileID, toFolderID)
}

// detachFile removes the file id from its current parent's list (or the
// unorganized list) without reattaching it anywhere.
func (t *PlanTree) detachFile(file *fileNode) {
	if file.parentID == "" {
		t.unorganized = removeID(t.unorganized, file.id)
		return
	}
	if parent, ok := t.folders[file.parentID]; ok {
		parent.files = removeID(parent.files, file.id)
	}
}

func removeID(ids []string, id string) []string {
	for i, v := range ids {
		if v == id {
			return append(ids[:i], ids[i+1:]...)
		}
	}
	return ids
}

// FindFile returns the id of the file node with the given path.
func (t *PlanTree) FindFile(path string) (string, bool) {
	for id, f := range t.files {
		if f.record.Path == path {
			return id, true
		}
	}
	return "", false
}

// FindFolder returns the id of the first folder with the given name,
// searching top-level folders first, then depth-first.
func (t *PlanTree) FindFolder(name string) (string, bool) {
	var search func(ids []string) (string, bool)
	search = func(ids []string) (string, bool) {
		for _, id := range ids {
			if t.folders[id].name == name {
				return id, true
			}
		}
		for _, id := range ids {
			if found, ok := search(t.folders[id].folders); ok {
				return found, true
			}
		}
		return "", false
	}
	return search(t.rootFolders)
}

// Rebuild derives an OrganizationPlan from the current tree.
func (t *PlanTree) Rebuild() *OrganizationPlan {
	var build func(id string) *FolderSuggestion
	build = func(id string) *FolderSuggestion {
		node := t.folders[id]
		f := &FolderSuggestion{
			Name:      node.name,
			Reasoning: node.reasoning,
		}
		for _, fid := range node.files {
			fn := t.files[fid]
			f.Files = append(f.Files, fn.record)
			if fn.renameTo != "" {
				if f.Renames == nil {
					f.Renames = make(map[string]string)
				}
				f.Renames[fn.record.Path] = fn.renameTo
			}
		}
		for _, cid := range node.folders {
			f.Subfolders = append(f.Subfolders, build(cid))
		}
		return f
	}

	plan := &OrganizationPlan{
		Version: t.version,
		Stats:   t.stats,
	}
	for _, id := range t.rootFolders {
		plan.Folders = append(plan.Folders, build(id))
	}
	var reasons []string
	var hasReason bool
	for _, fid := range t.unorganized {
		fn := t.files[fid]
		plan.Unorganized = append(plan.Unorganized, fn.record)
		reasons = append(reasons, fn.reason)
		if fn.reason != "" {
			hasReason = true
		}
	}
	if hasReason {
		plan.UnorganizedReasons = reasons
	}
	return plan
}
