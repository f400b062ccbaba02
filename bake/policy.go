package bake

import "github.com/hearthworld/assetd/assetpath"

// ModelSentinel and TextureSentinel are the fixed filenames a bake's output
// is published under within a source hash's hidden subtree.
const (
	ModelSentinel   = "asset.fbx"
	TextureSentinel = "texture.ktx"
)

// CurrentBakeVersion is stamped into every AssetMeta written on a
// successful bake. Bump it when the baker's output format changes in a
// way that should invalidate previously baked assets.
const CurrentBakeVersion = 1

// DefaultModelExts are the extensions the model baker claims
// unconditionally, absent an operator-supplied override.
var DefaultModelExts = []string{"fbx"}

// kind classifies a mapping for the bakeability rule.
type kind int

const (
	kindNotBakeable kind = iota
	kindModel
	kindTexture
)

// classify determines whether path/hash is bakeable, and as what. Textures
// additionally require a published meta document -- the mechanism a client
// uses to opt an asset into texture baking (see metastore.Store.HasMeta).
func (c *Coordinator) classify(path string, hasMeta bool) kind {
	ext := assetpath.Extension(path)
	switch {
	case c.modelExts[ext]:
		return kindModel
	case c.textureExts[ext] && hasMeta:
		return kindTexture
	default:
		return kindNotBakeable
	}
}

func (k kind) sentinel() string {
	switch k {
	case kindModel:
		return ModelSentinel
	case kindTexture:
		return TextureSentinel
	default:
		return ""
	}
}
