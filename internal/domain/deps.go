package domain

import (
	"bytes"
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// DepTable — таблица объявленных зависимостей узлов от источников данных.
//
// В DSL таблица записывается объектом:
//
//	{"<sourceId>": {"<nodeId>": {"name": "...", "keys": ["text"]}}}
//
// Порядок источников и узлов внутри источника сохраняется в порядке
// объявления — от него зависит порядок пересчёта.
// nil означает, что таблица в DSL отсутствует.
type DepTable []SourceDeps

// SourceDeps — узлы, зависящие от одного источника.
type SourceDeps struct {
	// SourceID — идентификатор источника данных.
	SourceID string

	// Targets — зависимые узлы в порядке объявления.
	Targets []DepTarget
}

// DepTarget — описание зависимости одного узла.
// Name и Keys ядром не интерпретируются.
type DepTarget struct {
	NodeID string
	Name   string
	Keys   []string
}

// depDescriptor — сериализуемая часть DepTarget.
type depDescriptor struct {
	Name string   `json:"name,omitempty" yaml:"name,omitempty"`
	Keys []string `json:"keys,omitempty" yaml:"keys,omitempty"`
}

// Get возвращает зависимости источника.
func (t DepTable) Get(sourceID string) (SourceDeps, bool) {
	for _, sd := range t {
		if sd.SourceID == sourceID {
			return sd, true
		}
	}
	return SourceDeps{}, false
}

// Sources возвращает идентификаторы источников в порядке объявления.
func (t DepTable) Sources() []string {
	ids := make([]string, 0, len(t))
	for _, sd := range t {
		ids = append(ids, sd.SourceID)
	}
	return ids
}

// NodeIDs возвращает объединение узлов всех источников без повторов,
// в порядке первого появления.
func (t DepTable) NodeIDs() []string {
	seen := make(map[string]bool)
	ids := make([]string, 0)
	for _, sd := range t {
		for _, target := range sd.Targets {
			if seen[target.NodeID] {
				continue
			}
			seen[target.NodeID] = true
			ids = append(ids, target.NodeID)
		}
	}
	return ids
}

// NodeIDs возвращает узлы источника без повторов.
func (sd SourceDeps) NodeIDs() []string {
	seen := make(map[string]bool, len(sd.Targets))
	ids := make([]string, 0, len(sd.Targets))
	for _, target := range sd.Targets {
		if seen[target.NodeID] {
			continue
		}
		seen[target.NodeID] = true
		ids = append(ids, target.NodeID)
	}
	return ids
}

// Add добавляет зависимость узла от источника и возвращает обновлённую таблицу.
// Повторное объявление той же пары (источник, узел) игнорируется.
func (t DepTable) Add(sourceID string, target DepTarget) DepTable {
	for i := range t {
		if t[i].SourceID != sourceID {
			continue
		}
		for _, existing := range t[i].Targets {
			if existing.NodeID == target.NodeID {
				return t
			}
		}
		t[i].Targets = append(t[i].Targets, target)
		return t
	}
	return append(t, SourceDeps{SourceID: sourceID, Targets: []DepTarget{target}})
}

// MarshalJSON сериализует таблицу в объектную форму с сохранением порядка.
func (t DepTable) MarshalJSON() ([]byte, error) {
	if t == nil {
		return []byte("null"), nil
	}

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, sd := range t {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(sd.SourceID)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteString(":{")
		for j, target := range sd.Targets {
			if j > 0 {
				buf.WriteByte(',')
			}
			nodeKey, err := json.Marshal(target.NodeID)
			if err != nil {
				return nil, err
			}
			desc, err := json.Marshal(depDescriptor{Name: target.Name, Keys: target.Keys})
			if err != nil {
				return nil, err
			}
			buf.Write(nodeKey)
			buf.WriteByte(':')
			buf.Write(desc)
		}
		buf.WriteByte('}')
	}
	buf.WriteByte('}')

	return buf.Bytes(), nil
}

// UnmarshalJSON читает объектную форму, сохраняя порядок ключей.
func (t *DepTable) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("dep table: %w", err)
	}
	if tok == nil {
		*t = nil
		return nil
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("dep table: expected object, got %v", tok)
	}

	table := DepTable{}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("dep table: %w", err)
		}
		sourceID, _ := keyTok.(string)

		targets, err := decodeTargetsJSON(dec)
		if err != nil {
			return fmt.Errorf("dep table %s: %w", sourceID, err)
		}
		for _, target := range targets {
			table = table.Add(sourceID, target)
		}
		if _, ok := table.Get(sourceID); !ok {
			table = append(table, SourceDeps{SourceID: sourceID})
		}
	}

	if _, err := dec.Token(); err != nil {
		return fmt.Errorf("dep table: %w", err)
	}

	*t = table
	return nil
}

// decodeTargetsJSON читает объект nodeId → descriptor.
func decodeTargetsJSON(dec *json.Decoder) ([]DepTarget, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if tok == nil {
		return nil, nil
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("expected object, got %v", tok)
	}

	var targets []DepTarget
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		nodeID, _ := keyTok.(string)

		var desc depDescriptor
		if err := dec.Decode(&desc); err != nil {
			return nil, fmt.Errorf("node %s: %w", nodeID, err)
		}
		targets = append(targets, DepTarget{NodeID: nodeID, Name: desc.Name, Keys: desc.Keys})
	}

	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return targets, nil
}

// UnmarshalYAML читает mapping, сохраняя порядок ключей.
func (t *DepTable) UnmarshalYAML(value *yaml.Node) error {
	if value.Tag == "!!null" {
		*t = nil
		return nil
	}
	if value.Kind != yaml.MappingNode {
		return fmt.Errorf("dep table: expected mapping at line %d", value.Line)
	}

	table := DepTable{}
	for i := 0; i+1 < len(value.Content); i += 2 {
		sourceID := value.Content[i].Value
		targetsNode := value.Content[i+1]

		if _, ok := table.Get(sourceID); !ok {
			table = append(table, SourceDeps{SourceID: sourceID})
		}
		if targetsNode.Kind != yaml.MappingNode {
			continue
		}

		for j := 0; j+1 < len(targetsNode.Content); j += 2 {
			nodeID := targetsNode.Content[j].Value
			var desc depDescriptor
			if err := targetsNode.Content[j+1].Decode(&desc); err != nil {
				return fmt.Errorf("dep table %s/%s: %w", sourceID, nodeID, err)
			}
			table = table.Add(sourceID, DepTarget{NodeID: nodeID, Name: desc.Name, Keys: desc.Keys})
		}
	}

	*t = table
	return nil
}

// MarshalYAML сериализует таблицу в mapping с сохранением порядка.
func (t DepTable) MarshalYAML() (any, error) {
	root := &yaml.Node{Kind: yaml.MappingNode}
	for _, sd := range t {
		targets := &yaml.Node{Kind: yaml.MappingNode}
		for _, target := range sd.Targets {
			desc := &yaml.Node{}
			if err := desc.Encode(depDescriptor{Name: target.Name, Keys: target.Keys}); err != nil {
				return nil, err
			}
			targets.Content = append(targets.Content,
				&yaml.Node{Kind: yaml.ScalarNode, Value: target.NodeID}, desc)
		}
		root.Content = append(root.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Value: sd.SourceID}, targets)
	}
	return root, nil
}
