package deployment

// SlotView describes one slot of the pool for display.
type SlotView struct {
	Index   int    `json:"index"`
	Port    int    `json:"port"`
	Handle  string `json:"handle"`
	Version string `json:"version,omitempty"`
	Live    bool   `json:"live"`
	Next    bool   `json:"next"`
}

// DescribeSlots lists every slot of pool with what the state records for it.
func DescribeSlots(s *State, pool Pool, projectName string) []SlotView {
	deployPort, livePort := ResolveSlots(s, pool)
	views := make([]SlotView, 0, len(pool))
	for i, port := range pool {
		views = append(views, SlotView{
			Index:   i,
			Port:    port,
			Handle:  ProjectHandle(projectName, port),
			Version: s.ActiveSlots[port],
			Live:    livePort != nil && *livePort == port,
			Next:    port == deployPort,
		})
	}
	return views
}
