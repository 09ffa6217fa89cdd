package collision

import "github.com/san-kum/contactsim/internal/particles"

type unionFind struct {
	parent map[particles.ID]particles.ID
}

func (u *unionFind) find(id particles.ID) particles.ID {
	root, ok := u.parent[id]
	if !ok {
		u.parent[id] = id
		return id
	}
	if root == id {
		return id
	}
	root = u.find(root)
	u.parent[id] = root
	return root
}

func (u *unionFind) union(a, b particles.ID) {
	ra, rb := u.find(a), u.find(b)
	if ra != rb {
		u.parent[rb] = ra
	}
}

// BuildIslands partitions handles into groups that share no movable
// particle. Static and kinematic particles do not join islands, so two
// boxes resting on the same floor land in different groups. Islands keep
// the order in which their first contact appears in handles.
func BuildIslands(handles []*Handle) [][]*Handle {
	uf := unionFind{parent: make(map[particles.ID]particles.ID)}
	for _, h := range handles {
		c := h.Contact()
		a, b := c.Particles[0], c.Particles[1]
		switch da, db := particles.Movable(a), particles.Movable(b); {
		case da && db:
			uf.union(a.ID(), b.ID())
		case da:
			uf.find(a.ID())
		case db:
			uf.find(b.ID())
		}
	}

	var islands [][]*Handle
	index := make(map[particles.ID]int)
	var inert []*Handle
	for _, h := range handles {
		c := h.Contact()
		var root particles.ID
		switch {
		case particles.Movable(c.Particles[0]):
			root = uf.find(c.Particles[0].ID())
		case particles.Movable(c.Particles[1]):
			root = uf.find(c.Particles[1].ID())
		default:
			inert = append(inert, h)
			continue
		}
		i, ok := index[root]
		if !ok {
			i = len(islands)
			index[root] = i
			islands = append(islands, nil)
		}
		islands[i] = append(islands[i], h)
	}
	if len(inert) > 0 {
		islands = append(islands, inert)
	}
	return islands
}
