package rules

import "strings"

// FindCollisions groups sibling names that differ only by case. The result
// maps every member of a group with two or more names to the other members,
// in listing order. Names outside any group are absent.
func FindCollisions(names []string) map[string][]string {
	groups := make(map[string][]string, len(names))
	for _, name := range names {
		key := strings.ToLower(name)
		groups[key] = append(groups[key], name)
	}

	collisions := make(map[string][]string)
	for _, name := range names {
		group := groups[strings.ToLower(name)]
		if len(group) < 2 {
			continue
		}
		others := make([]string, 0, len(group)-1)
		for _, other := range group {
			if other != name {
				others = append(others, other)
			}
		}
		if len(others) > 0 {
			collisions[name] = others
		}
	}
	return collisions
}
