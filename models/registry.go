package models

import (
	"fmt"
	"sort"

	"github.com/nvr-ai/go-nudenet/inference"
)

// Name is the unique identifier of a detector variant.
type Name string

const (
	// ModelName320n is the nano detector trained at 320x320.
	ModelName320n Name = "320n"
	// ModelName640m is the medium detector trained at 640x640.
	ModelName640m Name = "640m"
)

// NMSFile is the suppression graph shared by every variant.
const NMSFile = "nms-yolov8.onnx"

// Artifact describes one model file and its tensor contract.
type Artifact struct {
	// Name identifies the artifact in logs.
	Name string `json:"name" yaml:"name"`
	// File is the artifact's file name relative to the base path.
	File string `json:"file" yaml:"file"`
	// Inputs are the graph input names.
	Inputs []string `json:"inputs" yaml:"inputs"`
	// Outputs are the graph output names.
	Outputs []string `json:"outputs" yaml:"outputs"`
}

// Variant is a detector artifact plus the square input size it expects.
type Variant struct {
	Name     Name     `json:"name" yaml:"name"`
	Size     int      `json:"size" yaml:"size"`
	Detector Artifact `json:"detector" yaml:"detector"`
	NMS      Artifact `json:"nms" yaml:"nms"`
}

// NMSArtifact returns the suppression model artifact.
func NMSArtifact() Artifact {
	return Artifact{
		Name:    "nms",
		File:    NMSFile,
		Inputs:  []string{inference.InputDetection, inference.InputConfig},
		Outputs: []string{inference.OutputSelected},
	}
}

func detectorArtifact(name Name) Artifact {
	return Artifact{
		Name:    "detector-" + string(name),
		File:    string(name) + ".onnx",
		Inputs:  []string{inference.InputImages},
		Outputs: []string{inference.OutputDetector},
	}
}

var variants = map[Name]Variant{
	ModelName320n: {Name: ModelName320n, Size: 320, Detector: detectorArtifact(ModelName320n), NMS: NMSArtifact()},
	ModelName640m: {Name: ModelName640m, Size: 640, Detector: detectorArtifact(ModelName640m), NMS: NMSArtifact()},
}

// VariantFor resolves a registered variant.
//
// Arguments:
//   - name: The variant name, e.g. "320n".
//
// Returns:
//   - Variant: The variant.
//   - error: An error naming the registered variants when name is unknown.
func VariantFor(name Name) (Variant, error) {
	v, ok := variants[name]
	if !ok {
		return Variant{}, fmt.Errorf("unsupported model name: %s (have %v)", name, VariantNames())
	}
	return v, nil
}

// VariantNames returns the registered variant names, sorted.
func VariantNames() []Name {
	names := make([]Name, 0, len(variants))
	for n := range variants {
		names = append(names, n)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}
