package models

// SessionTreeNode is a rendering-ready projection of a session within its
// project's fork tree. ParentID references another node by id, never by
// pointer, so the forest cannot carry an ownership cycle (see DESIGN.md).
type SessionTreeNode struct {
	ID           string             `json:"id"`
	Title        string             `json:"title"`
	ParentID     *string            `json:"parent_id,omitempty"`
	Children     []*SessionTreeNode `json:"children,omitempty"`
	Depth        int                `json:"depth"`
	IsLast       bool               `json:"is_last"`
	MessageCount int                `json:"message_count"`
	Cost         float64            `json:"cost"`
	Time         SessionTimes       `json:"time"`
	IsCurrent    bool               `json:"is_current,omitempty"`
	Shared       bool               `json:"shared,omitempty"`
}
