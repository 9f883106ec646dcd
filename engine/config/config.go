package config

import (
	"os"

	"github.com/cockroachdb/errors"
	"github.com/pelletier/go-toml/v2"
)

// Config drives the fixed GPU capacities of the engine. Every array is sized
// once at startup; running out of a capacity at runtime is fatal.
type Config struct {
	Application ApplicationConfig `toml:"application"`
	Memory      MemoryConfig      `toml:"memory"`
}

type ApplicationConfig struct {
	Name        string `toml:"name"`
	StartPosX   uint32 `toml:"start_pos_x"`
	StartPosY   uint32 `toml:"start_pos_y"`
	StartWidth  uint32 `toml:"start_width"`
	StartHeight uint32 `toml:"start_height"`
	Headless    bool   `toml:"headless"`
	AssetDir    string `toml:"asset_dir"`
}

type MemoryConfig struct {
	// Number of vertices/indices/surfaces the GPU resident mesh tables hold.
	VertexCapacity  uint64 `toml:"vertex_capacity"`
	IndexCapacity   uint64 `toml:"index_capacity"`
	SurfaceCapacity uint64 `toml:"surface_capacity"`
	// Number of material table entries.
	MaterialCapacity uint64 `toml:"material_capacity"`
	// Staging capacities, in instances of the owning array.
	VertexStagingCapacity   uint64 `toml:"vertex_staging_capacity"`
	IndexStagingCapacity    uint64 `toml:"index_staging_capacity"`
	SurfaceStagingCapacity  uint64 `toml:"surface_staging_capacity"`
	MaterialStagingCapacity uint64 `toml:"material_staging_capacity"`
	// Resource manager slot counts.
	MeshCapacity     int `toml:"mesh_capacity"`
	ImageCapacity    int `toml:"image_capacity"`
	MaterialSlots    int `toml:"material_slots"`
	CommandQueueSize int `toml:"command_queue_size"`
}

func Default() *Config {
	return &Config{
		Application: ApplicationConfig{
			Name:        "Vanta",
			StartWidth:  1280,
			StartHeight: 720,
			AssetDir:    "assets",
		},
		Memory: MemoryConfig{
			VertexCapacity:          1 << 20,
			IndexCapacity:           1 << 21,
			SurfaceCapacity:         1 << 16,
			MaterialCapacity:        1 << 12,
			VertexStagingCapacity:   1 << 18,
			IndexStagingCapacity:    1 << 19,
			SurfaceStagingCapacity:  1 << 14,
			MaterialStagingCapacity: 1 << 12,
			MeshCapacity:            4096,
			ImageCapacity:           1024,
			MaterialSlots:           4096,
			CommandQueueSize:        64,
		},
	}
}

// Load reads a TOML config file on top of the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read config %s", path)
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrapf(err, "failed to parse config %s", path)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	m := &c.Memory
	if m.VertexCapacity == 0 || m.IndexCapacity == 0 || m.SurfaceCapacity == 0 {
		return errors.New("mesh array capacities must be > 0")
	}
	if m.VertexStagingCapacity == 0 || m.IndexStagingCapacity == 0 ||
		m.SurfaceStagingCapacity == 0 || m.MaterialStagingCapacity == 0 {
		return errors.New("staging capacities must be > 0")
	}
	if m.VertexStagingCapacity > m.VertexCapacity ||
		m.IndexStagingCapacity > m.IndexCapacity ||
		m.SurfaceStagingCapacity > m.SurfaceCapacity ||
		m.MaterialStagingCapacity > m.MaterialCapacity {
		return errors.New("staging capacity cannot exceed the array capacity")
	}
	if m.MeshCapacity <= 0 || m.ImageCapacity <= 0 || m.MaterialSlots <= 0 {
		return errors.New("resource slot counts must be > 0")
	}
	return nil
}
