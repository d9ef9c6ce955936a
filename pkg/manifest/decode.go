package manifest

import (
	"errors"
	"fmt"
	"io"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	utilyaml "k8s.io/apimachinery/pkg/util/yaml"

	"github.com/chazu/litekube/pkg/kubeerr"
)

const decodeBufferSize = 4096

// Decode reads every document of a YAML or JSON stream. Empty documents are
// skipped; a document without apiVersion, kind or metadata.name is rejected.
func Decode(r io.Reader) ([]*unstructured.Unstructured, error) {
	decoder := utilyaml.NewYAMLOrJSONDecoder(r, decodeBufferSize)

	var objs []*unstructured.Unstructured
	for doc := 1; ; doc++ {
		var raw map[string]interface{}
		if err := decoder.Decode(&raw); err != nil {
			if errors.Is(err, io.EOF) {
				return objs, nil
			}
			return nil, kubeerr.Wrap(kubeerr.InvalidResourceBody, err, fmt.Sprintf("decode document %d", doc))
		}
		if len(raw) == 0 {
			continue
		}

		obj := &unstructured.Unstructured{Object: raw}
		switch {
		case obj.GetAPIVersion() == "":
			return nil, kubeerr.Newf(kubeerr.InvalidResourceBody, "document %d: apiVersion is required", doc)
		case obj.GetKind() == "":
			return nil, kubeerr.Newf(kubeerr.InvalidResourceBody, "document %d: kind is required", doc)
		case obj.GetName() == "":
			return nil, kubeerr.Newf(kubeerr.InvalidResourceBody, "document %d: metadata.name is required", doc)
		}
		objs = append(objs, obj)
	}
}
