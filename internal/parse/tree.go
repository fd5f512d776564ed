package parse

import (
	"sort"
	"strings"
)

// Tree-structured exports carry a node map per conversation: each node has a
// parent pointer, a children list and an optional message payload. Edited
// branches fork the tree; the export's live transcript is the path that
// always follows the most recent (last) child.

type treeNode struct {
	id       string
	parent   string
	children []string
	role     string
	text     string
	ts       any
}

// detectTree reports whether doc is a tree export: a conversation object
// with a "mapping" node map, an array of such objects, or a bare node map.
func detectTree(doc any) bool {
	switch d := doc.(type) {
	case map[string]any:
		if m, ok := d["mapping"].(map[string]any); ok {
			return mapLooksLikeNodes(m)
		}
		return mapLooksLikeNodes(d)
	case []any:
		for _, item := range d {
			obj, ok := item.(map[string]any)
			if !ok {
				return false
			}
			if m, ok := obj["mapping"].(map[string]any); ok && mapLooksLikeNodes(m) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

func mapLooksLikeNodes(m map[string]any) bool {
	if len(m) == 0 {
		return false
	}
	for _, v := range m {
		node, ok := v.(map[string]any)
		if !ok {
			return false
		}
		_, hasChildren := node["children"]
		_, hasParent := node["parent"]
		if !hasChildren && !hasParent {
			return false
		}
	}
	return true
}

func parseTree(doc any) []Conversation {
	var convs []Conversation
	switch d := doc.(type) {
	case []any:
		for _, item := range d {
			obj, ok := item.(map[string]any)
			if !ok {
				continue
			}
			convs = append(convs, parseTreeConversation(obj))
		}
	case map[string]any:
		if _, ok := d["mapping"].(map[string]any); ok {
			convs = append(convs, parseTreeConversation(d))
		} else {
			convs = append(convs, Conversation{Messages: walkTree(decodeNodes(d))})
		}
	}
	return convs
}

func parseTreeConversation(obj map[string]any) Conversation {
	c := Conversation{
		Created: parseTimestamp(obj["create_time"]),
		Updated: parseTimestamp(obj["update_time"]),
	}
	if title, ok := obj["title"].(string); ok {
		c.Title = title
	}
	if mapping, ok := obj["mapping"].(map[string]any); ok {
		c.Messages = walkTree(decodeNodes(mapping))
	}
	return c
}

func decodeNodes(mapping map[string]any) map[string]*treeNode {
	nodes := make(map[string]*treeNode, len(mapping))
	for id, v := range mapping {
		obj, ok := v.(map[string]any)
		if !ok {
			continue
		}
		n := &treeNode{id: id}
		if p, ok := obj["parent"].(string); ok {
			n.parent = p
		}
		if kids, ok := obj["children"].([]any); ok {
			for _, k := range kids {
				if s, ok := k.(string); ok {
					n.children = append(n.children, s)
				}
			}
		}
		if msg, ok := obj["message"].(map[string]any); ok {
			if author, ok := msg["author"].(map[string]any); ok {
				n.role, _ = author["role"].(string)
			}
			n.text = joinParts(msg)
			n.ts = msg["create_time"]
		}
		nodes[id] = n
	}
	return nodes
}

// joinParts collects the string elements of content.parts, newline-joined
// and trimmed. Non-string parts (images, tool payloads) are ignored.
func joinParts(msg map[string]any) string {
	content, ok := msg["content"].(map[string]any)
	if !ok {
		return ""
	}
	parts, ok := content["parts"].([]any)
	if !ok {
		return ""
	}
	var texts []string
	for _, p := range parts {
		if s, ok := p.(string); ok {
			texts = append(texts, s)
		}
	}
	return strings.TrimSpace(strings.Join(texts, "\n"))
}

// walkTree reconstructs the live transcript: start at the root and follow
// the last child at every branch point until a node has no children. Nodes
// whose role is outside user/assistant or whose content is empty are
// dropped silently (system and tool-only nodes).
func walkTree(nodes map[string]*treeNode) []Message {
	root := findRoot(nodes)
	if root == "" {
		return nil
	}

	var msgs []Message
	visited := make(map[string]bool, len(nodes))
	current := root
	for current != "" && !visited[current] {
		visited[current] = true
		n := nodes[current]
		if n == nil {
			break
		}
		if (n.role == RoleUser || n.role == RoleAssistant) && n.text != "" {
			msgs = append(msgs, Message{
				Role:      n.role,
				Text:      n.text,
				Timestamp: parseTimestamp(n.ts),
			})
		}
		if len(n.children) == 0 {
			break
		}
		current = n.children[len(n.children)-1]
	}
	return msgs
}

// findRoot returns the unique node with no parent (or whose parent id is
// absent from the map). When no unique root exists the first candidate in
// key order is taken.
func findRoot(nodes map[string]*treeNode) string {
	ids := make([]string, 0, len(nodes))
	for id := range nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var candidates []string
	for _, id := range ids {
		n := nodes[id]
		if n.parent == "" {
			candidates = append(candidates, id)
			continue
		}
		if _, ok := nodes[n.parent]; !ok {
			candidates = append(candidates, id)
		}
	}
	if len(candidates) == 0 {
		return ""
	}
	return candidates[0]
}
