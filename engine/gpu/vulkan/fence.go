package vulkan

import (
	"math"

	vk "github.com/goki/vulkan"
)

type VulkanFence struct {
	context *VulkanContext
	Handle  vk.Fence
}

func NewVulkanFence(context *VulkanContext, signaled bool) (*VulkanFence, error) {
	fenceCreateInfo := vk.FenceCreateInfo{
		SType: vk.StructureTypeFenceCreateInfo,
	}
	if signaled {
		fenceCreateInfo.Flags = vk.FenceCreateFlags(vk.FenceCreateSignaledBit)
	}
	var handle vk.Fence
	if res := vk.CreateFence(context.Device.LogicalDevice, &fenceCreateInfo, context.Allocator, &handle); res != vk.Success {
		return nil, VulkanResultError("vkCreateFence", res)
	}
	return &VulkanFence{context: context, Handle: handle}, nil
}

func (f *VulkanFence) Wait() {
	vk.WaitForFences(f.context.Device.LogicalDevice, 1, []vk.Fence{f.Handle}, vk.True, math.MaxUint64)
}

func (f *VulkanFence) Reset() error {
	if res := vk.ResetFences(f.context.Device.LogicalDevice, 1, []vk.Fence{f.Handle}); res != vk.Success {
		return VulkanResultError("vkResetFences", res)
	}
	return nil
}

func (f *VulkanFence) Destroy() {
	if f.Handle != vk.NullFence {
		vk.DestroyFence(f.context.Device.LogicalDevice, f.Handle, f.context.Allocator)
		f.Handle = vk.NullFence
	}
}
