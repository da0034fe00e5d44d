package graph

import (
	"github.com/poiesic/postflow/core"
)

// DataType is the value type of a property key.
type DataType string

const DataTypeString DataType = "STRING"

// PropertyKey declares a property name and its type.
type PropertyKey struct {
	Name     string   `json:"name"`
	DataType DataType `json:"data_type"`
}

// Schema declares the property keys and edge labels a graph accepts.
type Schema struct {
	AppName      string          `json:"app_name"`
	GraphName    string          `json:"graph_name"`
	Visibility   core.Visibility `json:"visibility"`
	PropertyKeys []PropertyKey   `json:"property_keys"`
	EdgeLabels   []Label         `json:"edge_labels"`
}

// NewSchema returns the schema for graphs produced by Build.
func NewSchema(appName, graphName string, vis core.Visibility) Schema {
	return Schema{
		AppName:    appName,
		GraphName:  graphName,
		Visibility: vis,
		PropertyKeys: []PropertyKey{
			{Name: KeyScreenName, DataType: DataTypeString},
			{Name: KeyTwitterID, DataType: DataTypeString},
			{Name: KeyTweetID, DataType: DataTypeString},
			{Name: KeyEdgeName, DataType: DataTypeString},
		},
		EdgeLabels: Labels(),
	}
}

// AllowsLabel reports whether the schema declares l.
func (s Schema) AllowsLabel(l Label) bool {
	for _, declared := range s.EdgeLabels {
		if declared == l {
			return true
		}
	}
	return false
}

// AllowsKey reports whether the schema declares a property key.
func (s Schema) AllowsKey(key string) bool {
	for _, pk := range s.PropertyKeys {
		if pk.Name == key {
			return true
		}
	}
	return false
}
