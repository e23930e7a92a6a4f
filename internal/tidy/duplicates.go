package tidy

import "sort"

// DetectDuplicates groups files by content identity. Two files are duplicates
// iff their content hashes are equal AND their sizes are equal. Files without
// a computed hash never group.
//
// Within a group, files are ordered by ascending creation time (oldest first)
// unless newestFirst is set; the first element is the presumed original for
// default keep policies. Groups with fewer than two members are discarded.
// Group order is deterministic: by first-seen position in the input.
func DetectDuplicates(files []FileRecord, newestFirst bool) []DuplicateGroup {
	type identity struct {
		hash string
		size int64
	}

	byIdentity := make(map[identity][]FileRecord)
	var order []identity

	for _, f := range files {
		if f.Hash == "" {
			continue
		}
		id := identity{hash: f.Hash, size: f.Size}
		if _, seen := byIdentity[id]; !seen {
			order = append(order, id)
		}
		byIdentity[id] = append(byIdentity[id], f)
	}

	var groups []DuplicateGroup
	for _, id := range order {
		members := byIdentity[id]
		if len(members) < 2 {
			continue
		}
		sort.SliceStable(members, func(i, j int) bool {
			if newestFirst {
				return members[i].CreatedAt.After(members[j].CreatedAt)
			}
			return members[i].CreatedAt.Before(members[j].CreatedAt)
		})
		groups = append(groups, DuplicateGroup{
			Hash:  id.hash,
			Size:  id.size,
			Files: members,
		})
	}
	return groups
}
