// Package vulkan implements the gpu collaborators on vkngwrapper. Setup is a
// chain of stages, each produced by the one before it: an Instance creates a
// Surface, the Surface selects a PhysicalDevice, and the PhysicalDevice
// creates the Device. Teardown runs the chain backwards.
package vulkan

import (
	"context"
	"log/slog"

	"github.com/cockroachdb/errors"
	"github.com/veandco/go-sdl2/sdl"
	"github.com/vkngwrapper/core/v3"
	"github.com/vkngwrapper/core/v3/common"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/extensions/v3/ext_debug_utils"
	"github.com/vkngwrapper/extensions/v3/khr_portability_enumeration"
	"github.com/vkngwrapper/extensions/v3/khr_surface"
	"github.com/vkngwrapper/presenter/internal/logging"
)

var validationLayers = []string{"VK_LAYER_KHRONOS_validation"}

type InstanceOptions struct {
	ApplicationName string
	// Validation enables the Khronos validation layer and routes its
	// messages to the logger.
	Validation bool
}

// Window is what the instance and surface stages need from the window.
type Window interface {
	SDL() *sdl.Window
	InstanceExtensions() []string
	DrawableSize() (width, height int)
}

type Instance struct {
	driver     core1_0.CoreInstanceDriver
	debug      ext_debug_utils.ExtensionDriver
	messenger  ext_debug_utils.DebugUtilsMessenger
	surfaceExt khr_surface.ExtensionDriver
}

func CreateInstance(win Window, opts InstanceOptions) (*Instance, error) {
	global, err := core.CreateDriverFromProcAddr(sdl.VulkanGetVkGetInstanceProcAddr())
	if err != nil {
		return nil, errors.Wrap(err, "load vulkan")
	}

	info := core1_0.InstanceCreateInfo{
		ApplicationName:    opts.ApplicationName,
		ApplicationVersion: common.CreateVersion(1, 0, 0),
		EngineName:         "No Engine",
		EngineVersion:      common.CreateVersion(1, 0, 0),
		APIVersion:         common.Vulkan1_2,
	}

	extensions, _, err := global.AvailableExtensions()
	if err != nil {
		return nil, errors.Wrap(err, "enumerate instance extensions")
	}
	for _, ext := range win.InstanceExtensions() {
		if _, ok := extensions[ext]; !ok {
			return nil, errors.Newf("window requires missing instance extension %s", ext)
		}
		info.EnabledExtensionNames = append(info.EnabledExtensionNames, ext)
	}

	if _, ok := extensions[khr_portability_enumeration.ExtensionName]; ok {
		info.EnabledExtensionNames = append(info.EnabledExtensionNames, khr_portability_enumeration.ExtensionName)
		info.Flags |= khr_portability_enumeration.InstanceCreateEnumeratePortability
	}

	if opts.Validation {
		layers, _, err := global.AvailableLayers()
		if err != nil {
			return nil, errors.Wrap(err, "enumerate instance layers")
		}
		for _, layer := range validationLayers {
			if _, ok := layers[layer]; !ok {
				return nil, errors.Newf("validation layer %s is not available, install the LunarG Vulkan SDK", layer)
			}
			info.EnabledLayerNames = append(info.EnabledLayerNames, layer)
		}
		info.EnabledExtensionNames = append(info.EnabledExtensionNames, ext_debug_utils.ExtensionName)
		info.Next = debugMessengerInfo()
	}

	driver, _, err := global.CreateInstance(nil, info)
	if err != nil {
		return nil, errors.Wrap(err, "create instance")
	}

	instance := &Instance{
		driver:     driver,
		surfaceExt: khr_surface.CreateExtensionDriverFromCoreDriver(driver),
	}
	if opts.Validation {
		instance.debug = ext_debug_utils.CreateExtensionDriverFromCoreDriver(driver)
		instance.messenger, _, err = instance.debug.CreateDebugUtilsMessenger(nil, debugMessengerInfo())
		if err != nil {
			driver.DestroyInstance(nil)
			return nil, errors.Wrap(err, "create debug messenger")
		}
	}

	logging.Logger().Debug("instance created",
		slog.Int("extensions", len(info.EnabledExtensionNames)),
		slog.Bool("validation", opts.Validation))
	return instance, nil
}

func (i *Instance) Destroy() {
	if i.messenger.Initialized() {
		i.debug.DestroyDebugUtilsMessenger(i.messenger, nil)
	}
	i.driver.DestroyInstance(nil)
}

func debugMessengerInfo() ext_debug_utils.DebugUtilsMessengerCreateInfo {
	return ext_debug_utils.DebugUtilsMessengerCreateInfo{
		MessageSeverity: ext_debug_utils.SeverityError | ext_debug_utils.SeverityWarning,
		MessageType:     ext_debug_utils.TypeGeneral | ext_debug_utils.TypeValidation | ext_debug_utils.TypePerformance,
		UserCallback:    logDebug,
	}
}

func logDebug(msgType ext_debug_utils.DebugUtilsMessageTypeFlags, severity ext_debug_utils.DebugUtilsMessageSeverityFlags, data *ext_debug_utils.DebugUtilsMessengerCallbackData) bool {
	level := slog.LevelWarn
	if severity&ext_debug_utils.SeverityError != 0 {
		level = slog.LevelError
	}
	logging.Logger().Log(context.Background(), level, data.Message, slog.Any("type", msgType))
	return false
}
