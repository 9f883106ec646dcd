package vulkan

import (
	vk "github.com/goki/vulkan"

	"github.com/vanta-engine/vanta/engine/gpu"
)

type VulkanCommandAllocator struct {
	context *VulkanContext
	Handle  vk.CommandPool

	lists []*VulkanCommandList
}

func NewVulkanCommandAllocator(context *VulkanContext, commandType gpu.CommandType) (*VulkanCommandAllocator, error) {
	familyIndex := context.Device.GraphicsQueueIndex
	if commandType == gpu.CommandTypeTransfer {
		familyIndex = context.Device.TransferQueueIndex
	}

	poolCreateInfo := vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		QueueFamilyIndex: uint32(familyIndex),
		Flags:            vk.CommandPoolCreateFlags(vk.CommandPoolCreateTransientBit),
	}
	var handle vk.CommandPool
	if res := vk.CreateCommandPool(context.Device.LogicalDevice, &poolCreateInfo, context.Allocator, &handle); res != vk.Success {
		return nil, VulkanResultError("vkCreateCommandPool", res)
	}
	return &VulkanCommandAllocator{context: context, Handle: handle}, nil
}

func (a *VulkanCommandAllocator) CreateCommandList() (gpu.CommandList, error) {
	allocateInfo := vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        a.Handle,
		Level:              vk.CommandBufferLevelPrimary,
		CommandBufferCount: 1,
	}
	handles := make([]vk.CommandBuffer, 1)
	if res := vk.AllocateCommandBuffers(a.context.Device.LogicalDevice, &allocateInfo, handles); res != vk.Success {
		return nil, VulkanResultError("vkAllocateCommandBuffers", res)
	}
	list := &VulkanCommandList{Handle: handles[0]}
	a.lists = append(a.lists, list)
	return list, nil
}

// Reset recycles the pool storage. Command buffers allocated from the pool
// stay valid and go back to the initial state.
func (a *VulkanCommandAllocator) Reset() error {
	if res := vk.ResetCommandPool(a.context.Device.LogicalDevice, a.Handle, 0); res != vk.Success {
		return VulkanResultError("vkResetCommandPool", res)
	}
	return nil
}

func (a *VulkanCommandAllocator) Destroy() {
	if a.Handle != vk.NullCommandPool {
		// Destroying the pool frees every command buffer allocated from it.
		vk.DestroyCommandPool(a.context.Device.LogicalDevice, a.Handle, a.context.Allocator)
		a.Handle = vk.NullCommandPool
	}
	a.lists = nil
}

type VulkanCommandList struct {
	Handle vk.CommandBuffer
}

func (l *VulkanCommandList) Begin() error {
	beginInfo := vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
		Flags: vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit),
	}
	if res := vk.BeginCommandBuffer(l.Handle, &beginInfo); res != vk.Success {
		return VulkanResultError("vkBeginCommandBuffer", res)
	}
	return nil
}

func (l *VulkanCommandList) End() error {
	if res := vk.EndCommandBuffer(l.Handle); res != vk.Success {
		return VulkanResultError("vkEndCommandBuffer", res)
	}
	return nil
}

func (l *VulkanCommandList) Copy(src, dst gpu.Buffer) {
	region := vk.BufferCopy{
		SrcOffset: 0,
		DstOffset: 0,
		Size:      vk.DeviceSize(src.Size()),
	}
	vk.CmdCopyBuffer(l.Handle, src.(*VulkanBuffer).Handle, dst.(*VulkanBuffer).Handle, 1, []vk.BufferCopy{region})
}

func (l *VulkanCommandList) CopyRegions(src, dst gpu.Buffer, regions []gpu.BufferCopyRegion) {
	if len(regions) == 0 {
		return
	}
	copies := make([]vk.BufferCopy, len(regions))
	for i, region := range regions {
		copies[i] = vk.BufferCopy{
			SrcOffset: vk.DeviceSize(region.SrcOffset),
			DstOffset: vk.DeviceSize(region.DstOffset),
			Size:      vk.DeviceSize(region.Size),
		}
	}
	vk.CmdCopyBuffer(l.Handle, src.(*VulkanBuffer).Handle, dst.(*VulkanBuffer).Handle, uint32(len(copies)), copies)
}

func (l *VulkanCommandList) Barrier(buffer gpu.Buffer, oldState, newState gpu.ResourceState) {
	srcAccess, srcStage := resourceStateSync(oldState)
	dstAccess, dstStage := resourceStateSync(newState)

	barrier := vk.BufferMemoryBarrier{
		SType:               vk.StructureTypeBufferMemoryBarrier,
		SrcAccessMask:       srcAccess,
		DstAccessMask:       dstAccess,
		SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
		DstQueueFamilyIndex: vk.QueueFamilyIgnored,
		Buffer:              buffer.(*VulkanBuffer).Handle,
		Offset:              0,
		Size:                vk.DeviceSize(vk.WholeSize),
	}
	vk.CmdPipelineBarrier(l.Handle, srcStage, dstStage, 0,
		0, nil,
		1, []vk.BufferMemoryBarrier{barrier},
		0, nil)
}

func resourceStateSync(state gpu.ResourceState) (vk.AccessFlags, vk.PipelineStageFlags) {
	switch state {
	case gpu.ResourceStateCopySrc:
		return vk.AccessFlags(vk.AccessTransferReadBit), vk.PipelineStageFlags(vk.PipelineStageTransferBit)
	case gpu.ResourceStateCopyDst:
		return vk.AccessFlags(vk.AccessTransferWriteBit), vk.PipelineStageFlags(vk.PipelineStageTransferBit)
	case gpu.ResourceStateShaderRead:
		return vk.AccessFlags(vk.AccessShaderReadBit), vk.PipelineStageFlags(vk.PipelineStageVertexShaderBit | vk.PipelineStageFragmentShaderBit | vk.PipelineStageComputeShaderBit)
	}
	return 0, vk.PipelineStageFlags(vk.PipelineStageTopOfPipeBit)
}
