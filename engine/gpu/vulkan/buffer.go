package vulkan

import (
	"fmt"
	"unsafe"

	vk "github.com/goki/vulkan"

	"github.com/vanta-engine/vanta/engine/core"
	"github.com/vanta-engine/vanta/engine/gpu"
)

type VulkanBuffer struct {
	name       string
	bufferType gpu.BufferType
	size       uint64

	context *VulkanContext
	Handle  vk.Buffer
	Memory  vk.DeviceMemory
	mapped  unsafe.Pointer
}

func bufferUsage(bufferType gpu.BufferType) vk.BufferUsageFlags {
	switch bufferType {
	case gpu.BufferTypeVertex:
		return vk.BufferUsageFlags(vk.BufferUsageVertexBufferBit | vk.BufferUsageTransferDstBit)
	case gpu.BufferTypeIndex:
		return vk.BufferUsageFlags(vk.BufferUsageIndexBufferBit | vk.BufferUsageTransferDstBit)
	case gpu.BufferTypeUniform:
		return vk.BufferUsageFlags(vk.BufferUsageUniformBufferBit)
	case gpu.BufferTypeStorage:
		return vk.BufferUsageFlags(vk.BufferUsageStorageBufferBit)
	case gpu.BufferTypeDeviceStorage:
		return vk.BufferUsageFlags(vk.BufferUsageStorageBufferBit | vk.BufferUsageTransferDstBit)
	case gpu.BufferTypeReadWriteStorage:
		return vk.BufferUsageFlags(vk.BufferUsageStorageBufferBit | vk.BufferUsageTransferSrcBit | vk.BufferUsageTransferDstBit)
	case gpu.BufferTypeIndirect:
		return vk.BufferUsageFlags(vk.BufferUsageIndirectBufferBit | vk.BufferUsageTransferDstBit)
	case gpu.BufferTypeBufferUpload, gpu.BufferTypeImageUpload:
		return vk.BufferUsageFlags(vk.BufferUsageTransferSrcBit)
	case gpu.BufferTypeBufferDownload, gpu.BufferTypeImageDownload:
		return vk.BufferUsageFlags(vk.BufferUsageTransferDstBit)
	}
	return 0
}

func bufferMemoryProperties(bufferType gpu.BufferType) vk.MemoryPropertyFlags {
	if bufferType.HostVisible() {
		return vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit | vk.MemoryPropertyHostCoherentBit)
	}
	return vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit)
}

func NewVulkanBuffer(context *VulkanContext, bufferType gpu.BufferType, size uint64, name string) (*VulkanBuffer, error) {
	buffer := &VulkanBuffer{
		name:       name,
		bufferType: bufferType,
		size:       size,
		context:    context,
	}

	bufferCreateInfo := vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        vk.DeviceSize(size),
		Usage:       bufferUsage(bufferType),
		SharingMode: vk.SharingModeExclusive,
	}
	var handle vk.Buffer
	if res := vk.CreateBuffer(context.Device.LogicalDevice, &bufferCreateInfo, context.Allocator, &handle); res != vk.Success {
		return nil, VulkanResultError("vkCreateBuffer", res)
	}
	buffer.Handle = handle

	var requirements vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(context.Device.LogicalDevice, handle, &requirements)
	requirements.Deref()

	memoryIndex := context.FindMemoryIndex(requirements.MemoryTypeBits, uint32(bufferMemoryProperties(bufferType)))
	if memoryIndex < 0 {
		err := fmt.Errorf("no suitable memory type for buffer '%s'", name)
		core.LogError(err.Error())
		return nil, err
	}

	allocateInfo := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  requirements.Size,
		MemoryTypeIndex: uint32(memoryIndex),
	}
	var memory vk.DeviceMemory
	if res := vk.AllocateMemory(context.Device.LogicalDevice, &allocateInfo, context.Allocator, &memory); res != vk.Success {
		vk.DestroyBuffer(context.Device.LogicalDevice, handle, context.Allocator)
		return nil, VulkanResultError("vkAllocateMemory", res)
	}
	buffer.Memory = memory

	if res := vk.BindBufferMemory(context.Device.LogicalDevice, handle, memory, 0); res != vk.Success {
		buffer.Destroy()
		return nil, VulkanResultError("vkBindBufferMemory", res)
	}
	return buffer, nil
}

func (b *VulkanBuffer) Name() string         { return b.name }
func (b *VulkanBuffer) Type() gpu.BufferType { return b.bufferType }
func (b *VulkanBuffer) Size() uint64         { return b.size }

func (b *VulkanBuffer) Map() error {
	if b.mapped != nil {
		return nil
	}
	var data unsafe.Pointer
	if res := vk.MapMemory(b.context.Device.LogicalDevice, b.Memory, 0, vk.DeviceSize(b.size), 0, &data); res != vk.Success {
		return VulkanResultError("vkMapMemory", res)
	}
	b.mapped = data
	return nil
}

func (b *VulkanBuffer) Unmap() {
	if b.mapped == nil {
		return
	}
	vk.UnmapMemory(b.context.Device.LogicalDevice, b.Memory)
	b.mapped = nil
}

func (b *VulkanBuffer) Write(src []byte, size, offset uint64) {
	if b.mapped == nil {
		core.LogError("write to unmapped buffer '%s'", b.name)
		return
	}
	dst := unsafe.Slice((*byte)(b.mapped), b.size)
	copy(dst[offset:offset+size], src[:size])
}

func (b *VulkanBuffer) Read(offset, size uint64) []byte {
	out := make([]byte, size)
	if b.mapped == nil {
		core.LogError("read from unmapped buffer '%s'", b.name)
		return out
	}
	src := unsafe.Slice((*byte)(b.mapped), b.size)
	copy(out, src[offset:offset+size])
	return out
}

func (b *VulkanBuffer) Destroy() {
	b.Unmap()
	if b.Handle != vk.NullBuffer {
		vk.DestroyBuffer(b.context.Device.LogicalDevice, b.Handle, b.context.Allocator)
		b.Handle = vk.NullBuffer
	}
	if b.Memory != vk.NullDeviceMemory {
		vk.FreeMemory(b.context.Device.LogicalDevice, b.Memory, b.context.Allocator)
		b.Memory = vk.NullDeviceMemory
	}
}
