package validate

import "github.com/dshills/floorplan/internal/layout"

// unreachableRooms returns the indices of rooms that have at least one door
// but no door path to the outside. Rooms sharing a wall that carries a door
// are connected; a room whose exterior wall carries a door connects to the
// outside. Rooms without any door are left to ROOM_NO_ACCESS.
func unreachableRooms(c *checkContext) []int {
	n := len(c.l.Rooms)
	outside := n
	adj := make([][]int, n+1)
	link := func(a, b int) {
		adj[a] = append(adj[a], b)
		adj[b] = append(adj[b], a)
	}

	wallRooms := make(map[int][]int)
	for i, r := range c.l.Rooms {
		seen := make(map[int]bool)
		for _, idx := range r.BoundaryWallIndices {
			if _, ok := c.l.Wall(idx); ok && !seen[idx] {
				seen[idx] = true
				wallRooms[idx] = append(wallRooms[idx], i)
			}
		}
	}

	for wallIdx := range c.doorsByWall {
		rooms := wallRooms[wallIdx]
		if w, _ := c.l.Wall(wallIdx); w.Kind == layout.WallExterior {
			for _, r := range rooms {
				link(r, outside)
			}
		}
		for a := 0; a < len(rooms); a++ {
			for b := a + 1; b < len(rooms); b++ {
				link(rooms[a], rooms[b])
			}
		}
	}

	visited := make([]bool, n+1)
	visited[outside] = true
	queue := []int{outside}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, next := range adj[cur] {
			if !visited[next] {
				visited[next] = true
				queue = append(queue, next)
			}
		}
	}

	var out []int
	for i, r := range c.l.Rooms {
		if !visited[i] && c.roomHasDoor(r) {
			out = append(out, i)
		}
	}
	return out
}
