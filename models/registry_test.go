package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvr-ai/go-nudenet/inference"
)

func TestVariantFor(t *testing.T) {
	v, err := VariantFor(ModelName320n)
	require.NoError(t, err)
	assert.Equal(t, 320, v.Size)
	assert.Equal(t, "320n.onnx", v.Detector.File)
	assert.Equal(t, []string{inference.InputImages}, v.Detector.Inputs)
	assert.Equal(t, []string{inference.OutputDetector}, v.Detector.Outputs)
	assert.Equal(t, NMSFile, v.NMS.File)
	assert.Equal(t, []string{inference.InputDetection, inference.InputConfig}, v.NMS.Inputs)
	assert.Equal(t, []string{inference.OutputSelected}, v.NMS.Outputs)

	v, err = VariantFor(ModelName640m)
	require.NoError(t, err)
	assert.Equal(t, 640, v.Size)

	_, err = VariantFor("1280x")
	assert.Error(t, err)
	assert.Equal(t, []Name{ModelName320n, ModelName640m}, VariantNames())
}
