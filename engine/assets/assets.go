package assets

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/fsnotify/fsnotify"

	"github.com/vanta-engine/vanta/engine/core"
)

// AssetType is derived from the file extension. Decoding assets into engine
// resources happens outside the watcher.
type AssetType int

const (
	AssetTypeNone AssetType = iota
	AssetTypeImage
	AssetTypeMaterial
	AssetTypeModel
	AssetTypeShader
)

type AssetInfo struct {
	Path     string
	Type     AssetType
	Modified time.Time
}

// AssetManager indexes the asset directory and watches it for changes. A
// changed file fires EVENT_CODE_ASSET_RELOADED with the asset path so the
// resource managers can re-upload.
type AssetManager struct {
	mutex  sync.RWMutex
	assets map[string]AssetInfo

	fsnotify *fsnotify.Watcher
	done     chan struct{}
	isClosed bool
}

func NewAssetManager() (*AssetManager, error) {
	fsWatch, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &AssetManager{
		assets:   make(map[string]AssetInfo),
		fsnotify: fsWatch,
		done:     make(chan struct{}),
	}, nil
}

func (am *AssetManager) Initialize(assetsDir string) error {
	if am.isClosed {
		return errors.New("asset manager already closed")
	}
	if _, err := os.Stat(assetsDir); err != nil {
		core.LogWarn("Asset directory '%s' not found; watcher disabled.", assetsDir)
		return nil
	}
	if err := am.watchRecursive(assetsDir); err != nil {
		return err
	}
	go am.start()
	return nil
}

// Get returns the indexed info of an asset path.
func (am *AssetManager) Get(path string) (AssetInfo, bool) {
	am.mutex.RLock()
	defer am.mutex.RUnlock()
	info, ok := am.assets[path]
	return info, ok
}

func (am *AssetManager) Count() int {
	am.mutex.RLock()
	defer am.mutex.RUnlock()
	return len(am.assets)
}

func (am *AssetManager) Shutdown() error {
	if am.isClosed {
		return nil
	}
	am.isClosed = true
	close(am.done)
	return am.fsnotify.Close()
}

func (am *AssetManager) start() {
	for {
		select {
		case e, ok := <-am.fsnotify.Events:
			if !ok {
				return
			}
			if s, err := os.Stat(e.Name); err == nil && s.IsDir() {
				if e.Op&fsnotify.Create != 0 {
					if err := am.watchRecursive(e.Name); err != nil {
						core.LogError(err.Error())
					}
				}
				continue
			}
			if e.Op&(fsnotify.Create|fsnotify.Write) != 0 {
				if am.indexAsset(e.Name) {
					context := core.EventContext{}
					context.Data.C[0] = e.Name
					core.EventFire(core.EVENT_CODE_ASSET_RELOADED, am, context)
				}
			}
			if e.Op&fsnotify.Remove != 0 {
				am.removeAsset(e.Name)
			}

		case err, ok := <-am.fsnotify.Errors:
			if !ok {
				return
			}
			core.LogError(err.Error())

		case <-am.done:
			return
		}
	}
}

// watchRecursive adds every directory below path to the watch list and
// indexes the files it finds on the way.
func (am *AssetManager) watchRecursive(path string) error {
	return filepath.Walk(path, func(walkPath string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if fi.IsDir() {
			return am.fsnotify.Add(walkPath)
		}
		am.indexAsset(walkPath)
		return nil
	})
}

func (am *AssetManager) indexAsset(path string) bool {
	assetType := determineAssetType(path)
	if assetType == AssetTypeNone {
		return false
	}
	am.mutex.Lock()
	defer am.mutex.Unlock()
	am.assets[path] = AssetInfo{
		Path:     path,
		Type:     assetType,
		Modified: time.Now(),
	}
	return true
}

func (am *AssetManager) removeAsset(path string) {
	am.mutex.Lock()
	defer am.mutex.Unlock()
	delete(am.assets, path)
}

func determineAssetType(path string) AssetType {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png", ".jpg", ".tga", ".ktx":
		return AssetTypeImage
	case ".vmt":
		return AssetTypeMaterial
	case ".obj", ".gltf", ".glb":
		return AssetTypeModel
	case ".spv", ".slang":
		return AssetTypeShader
	default:
		return AssetTypeNone
	}
}
