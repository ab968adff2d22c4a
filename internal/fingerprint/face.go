package fingerprint

import (
	"context"
	"errors"
	"fmt"
	"math"
)

// ErrNoFace is returned when the embedding server finds no face in the image.
var ErrNoFace = errors.New("no face detected")

// Embedding is an L2-normalized face vector plus where it came from
type Embedding struct {
	Vector   []float32
	Model    string
	DetScore float64
	BBox     []float64
}

// LargestFace picks the detection with the biggest bounding box area.
func LargestFace(faces []FaceDetection) (*FaceDetection, error) {
	if len(faces) == 0 {
		return nil, ErrNoFace
	}
	best := &faces[0]
	for i := 1; i < len(faces); i++ {
		if faces[i].Area() > best.Area() {
			best = &faces[i]
		}
	}
	return best, nil
}

// Normalize returns a unit-length copy of vec.
func Normalize(vec []float32) ([]float32, error) {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if sum == 0 || math.IsNaN(sum) || math.IsInf(sum, 0) {
		return nil, errors.New("cannot normalize zero or non-finite vector")
	}
	norm := math.Sqrt(sum)
	out := make([]float32, len(vec))
	for i, v := range vec {
		out[i] = float32(float64(v) / norm)
	}
	return out, nil
}

// FaceEmbedder turns image bytes into a single normalized face embedding
type FaceEmbedder struct {
	client       *EmbeddingClient
	maxImageSize int
	dim          int
}

// NewFaceEmbedder creates an embedder backed by the embedding server.
func NewFaceEmbedder(client *EmbeddingClient, maxImageSize int) *FaceEmbedder {
	return &FaceEmbedder{client: client, maxImageSize: maxImageSize}
}

// WithDim makes Embed reject vectors whose length is not dim. Zero disables the check.
func (e *FaceEmbedder) WithDim(dim int) *FaceEmbedder {
	e.dim = dim
	return e
}

// Embed decodes and (if needed) downsizes the image, asks the embedding server
// for faces, keeps the largest one and L2-normalizes its vector.
func (e *FaceEmbedder) Embed(ctx context.Context, imageData []byte) (*Embedding, error) {
	prepared, err := PrepareImage(imageData, e.maxImageSize)
	if err != nil {
		return nil, err
	}

	resp, err := e.client.ComputeFaceEmbeddings(ctx, prepared)
	if err != nil {
		return nil, fmt.Errorf("face embedding failed: %w", err)
	}

	face, err := LargestFace(resp.Faces)
	if err != nil {
		return nil, err
	}
	if len(face.Embedding) == 0 {
		return nil, errors.New("empty embedding returned")
	}
	if e.dim > 0 && len(face.Embedding) != e.dim {
		return nil, fmt.Errorf("embedding has %d dimensions, expected %d", len(face.Embedding), e.dim)
	}

	vec, err := Normalize(face.Embedding)
	if err != nil {
		return nil, err
	}

	return &Embedding{
		Vector:   vec,
		Model:    resp.Model,
		DetScore: face.DetScore,
		BBox:     face.BBox,
	}, nil
}
