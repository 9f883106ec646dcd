package vulkan

import (
	"github.com/go-gl/glfw/v3.3/glfw"
	vk "github.com/goki/vulkan"

	"github.com/vanta-engine/vanta/engine/core"
	"github.com/vanta-engine/vanta/engine/gpu"
)

// VulkanBackend implements gpu.Backend on top of a headless Vulkan instance.
// No surface or swapchain is created here; presentation lives above this
// layer.
type VulkanBackend struct {
	context *VulkanContext

	graphicQueue  *VulkanSubmitQueue
	transferQueue *VulkanSubmitQueue
}

func New(appName string) (*VulkanBackend, error) {
	backend := &VulkanBackend{
		context: &VulkanContext{Allocator: nil},
	}

	// GLFW owns the Vulkan loader handle. Init is idempotent, so sharing the
	// process with a windowed platform layer is fine.
	if err := glfw.Init(); err != nil {
		core.LogError("failed to initialize GLFW: %s", err)
		return nil, err
	}
	vk.SetGetInstanceProcAddr(glfw.GetVulkanGetInstanceProcAddress())
	if err := vk.Init(); err != nil {
		core.LogError("failed to initialize Vulkan: %s", err)
		return nil, err
	}

	appInfo := vk.ApplicationInfo{
		SType:              vk.StructureTypeApplicationInfo,
		ApiVersion:         uint32(vk.ApiVersion11),
		ApplicationVersion: vk.MakeVersion(1, 0, 0),
		PApplicationName:   VulkanSafeString(appName),
		PEngineName:        VulkanSafeString("Vanta Engine"),
		EngineVersion:      vk.MakeVersion(1, 0, 0),
	}

	instanceCreateInfo := vk.InstanceCreateInfo{
		SType:            vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo: &appInfo,
	}

	var instance vk.Instance
	if res := vk.CreateInstance(&instanceCreateInfo, backend.context.Allocator, &instance); res != vk.Success {
		return nil, VulkanResultError("vkCreateInstance", res)
	}
	backend.context.Instance = instance
	if err := vk.InitInstance(instance); err != nil {
		core.LogError("failed to load instance procedures: %s", err)
		return nil, err
	}
	core.LogInfo("Vulkan instance created.")

	if err := DeviceCreate(backend.context); err != nil {
		vk.DestroyInstance(instance, backend.context.Allocator)
		return nil, err
	}

	backend.graphicQueue = &VulkanSubmitQueue{Handle: backend.context.Device.GraphicsQueue}
	if backend.context.Device.DedicatedTransfer {
		backend.transferQueue = &VulkanSubmitQueue{Handle: backend.context.Device.TransferQueue}
	} else {
		// One hardware queue, one wrapper; the wrapper mutex serializes both
		// roles.
		backend.transferQueue = backend.graphicQueue
	}
	return backend, nil
}

func (b *VulkanBackend) CreateBuffer(bufferType gpu.BufferType, elementSize, elementCount uint64, name string) (gpu.Buffer, error) {
	return NewVulkanBuffer(b.context, bufferType, elementSize*elementCount, name)
}

func (b *VulkanBackend) CreateCommandAllocator(commandType gpu.CommandType) (gpu.CommandAllocator, error) {
	return NewVulkanCommandAllocator(b.context, commandType)
}

func (b *VulkanBackend) CreateFence(signaled bool) (gpu.Fence, error) {
	return NewVulkanFence(b.context, signaled)
}

func (b *VulkanBackend) GraphicQueue() gpu.SubmitQueue  { return b.graphicQueue }
func (b *VulkanBackend) TransferQueue() gpu.SubmitQueue { return b.transferQueue }

func (b *VulkanBackend) HasDedicatedTransferQueue() bool {
	return b.context.Device.DedicatedTransfer
}

func (b *VulkanBackend) Shutdown() error {
	core.LogInfo("Shutting down Vulkan backend...")
	if b.context.Device != nil && b.context.Device.LogicalDevice != nil {
		vk.DeviceWaitIdle(b.context.Device.LogicalDevice)
		DeviceDestroy(b.context)
	}
	if b.context.Instance != nil {
		vk.DestroyInstance(b.context.Instance, b.context.Allocator)
		b.context.Instance = nil
	}
	return nil
}
