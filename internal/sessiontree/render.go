package sessiontree

import (
	"fmt"
	"strings"

	"github.com/haasonsaas/nexus/pkg/models"
)

const maxTitleLen = 40

func truncateTitle(title string) string {
	if len(title) <= maxTitleLen {
		return title
	}
	return title[:maxTitleLen-1] + "…"
}

func decorate(node *models.SessionTreeNode) string {
	label := truncateTitle(node.Title)
	if node.IsCurrent {
		label = "* " + label
	}
	label += fmt.Sprintf(" (%d msgs", node.MessageCount)
	if node.Cost > 0 {
		label += fmt.Sprintf(", $%.4f", node.Cost)
	}
	label += ")"
	return label
}

// RenderTree renders roots using ASCII box-drawing connectors, the default
// dense rendering used by an interactive fork picker.
func RenderTree(roots []*models.SessionTreeNode) string {
	var b strings.Builder
	for i, root := range roots {
		renderNode(&b, root, "", i == len(roots)-1)
	}
	return b.String()
}

func renderNode(b *strings.Builder, node *models.SessionTreeNode, prefix string, isLast bool) {
	connector := "├── "
	nextPrefix := prefix + "│   "
	if isLast {
		connector = "└── "
		nextPrefix = prefix + "    "
	}
	if prefix == "" {
		fmt.Fprintf(b, "%s\n", decorate(node))
	} else {
		fmt.Fprintf(b, "%s%s%s\n", prefix, connector, decorate(node))
	}
	for i, child := range node.Children {
		renderNode(b, child, nextPrefix, i == len(node.Children)-1)
	}
}

// Indented renders the tree as a flat list with two-space indentation per
// depth level, for non-TTY output (logs, piped consumers).
func Indented(roots []*models.SessionTreeNode) string {
	return indentedRec(roots, 0)
}

func indentedRec(nodes []*models.SessionTreeNode, depth int) string {
	var b strings.Builder
	for _, n := range nodes {
		fmt.Fprintf(&b, "%s%s\n", strings.Repeat("  ", depth), decorate(n))
		b.WriteString(indentedRec(n.Children, depth+1))
	}
	return b.String()
}

// Boxed renders each root subtree inside a simple ASCII box, one box per
// root session, useful when only one tree needs emphasis.
func Boxed(roots []*models.SessionTreeNode) string {
	var b strings.Builder
	for _, root := range roots {
		inner := RenderTree([]*models.SessionTreeNode{root})
		lines := strings.Split(strings.TrimRight(inner, "\n"), "\n")
		width := 0
		for _, l := range lines {
			if len(l) > width {
				width = len(l)
			}
		}
		fmt.Fprintf(&b, "+%s+\n", strings.Repeat("-", width+2))
		for _, l := range lines {
			fmt.Fprintf(&b, "| %-*s |\n", width, l)
		}
		fmt.Fprintf(&b, "+%s+\n", strings.Repeat("-", width+2))
	}
	return b.String()
}
