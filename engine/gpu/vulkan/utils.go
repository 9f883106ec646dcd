package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"

	"github.com/vanta-engine/vanta/engine/core"
)

var end = "\x00"
var endChar byte = '\x00'

func VulkanSafeString(s string) string {
	if len(s) == 0 {
		return end
	}
	if s[len(s)-1] != endChar {
		return s + end
	}
	return s
}

func VulkanSafeStrings(list []string) []string {
	for i := range list {
		list[i] = VulkanSafeString(list[i])
	}
	return list
}

func VulkanResultError(op string, result vk.Result) error {
	err := fmt.Errorf("%s failed with VkResult %d", op, int32(result))
	core.LogError(err.Error())
	return err
}
