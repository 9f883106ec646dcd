package vulkan

import (
	"sync"

	vk "github.com/goki/vulkan"

	"github.com/vanta-engine/vanta/engine/gpu"
)

// VulkanSubmitQueue wraps a vk.Queue. Vulkan queues are externally
// synchronized, so the mutex also covers the case where graphics and transfer
// share one hardware queue: both wrappers then hold the same *VulkanSubmitQueue.
type VulkanSubmitQueue struct {
	mu     sync.Mutex
	Handle vk.Queue
}

func (q *VulkanSubmitQueue) Submit(fence gpu.Fence, lists ...gpu.CommandList) error {
	handles := make([]vk.CommandBuffer, len(lists))
	for i, list := range lists {
		handles[i] = list.(*VulkanCommandList).Handle
	}

	submitInfo := vk.SubmitInfo{
		SType:              vk.StructureTypeSubmitInfo,
		CommandBufferCount: uint32(len(handles)),
		PCommandBuffers:    handles,
	}
	fenceHandle := vk.NullFence
	if fence != nil {
		fenceHandle = fence.(*VulkanFence).Handle
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if res := vk.QueueSubmit(q.Handle, 1, []vk.SubmitInfo{submitInfo}, fenceHandle); res != vk.Success {
		return VulkanResultError("vkQueueSubmit", res)
	}
	return nil
}
