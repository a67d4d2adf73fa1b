package hal

import "fmt"

type Format uint32

const (
	FormatUndefined Format = iota
	FormatB8G8R8A8Unorm
	FormatB8G8R8A8Srgb
	FormatR8G8B8A8Unorm
	FormatR8G8B8A8Srgb
	FormatD32Sfloat
	FormatD32SfloatS8Uint
	FormatD24UnormS8Uint
)

func (f Format) String() string {
	switch f {
	case FormatB8G8R8A8Unorm:
		return "B8G8R8A8_UNORM"
	case FormatB8G8R8A8Srgb:
		return "B8G8R8A8_SRGB"
	case FormatR8G8B8A8Unorm:
		return "R8G8B8A8_UNORM"
	case FormatR8G8B8A8Srgb:
		return "R8G8B8A8_SRGB"
	case FormatD32Sfloat:
		return "D32_SFLOAT"
	case FormatD32SfloatS8Uint:
		return "D32_SFLOAT_S8_UINT"
	case FormatD24UnormS8Uint:
		return "D24_UNORM_S8_UINT"
	default:
		return "UNDEFINED"
	}
}

// HasStencil reports whether a depth format carries a stencil aspect.
func (f Format) HasStencil() bool {
	return f == FormatD32SfloatS8Uint || f == FormatD24UnormS8Uint
}

func (f Format) IsDepth() bool {
	return f == FormatD32Sfloat || f.HasStencil()
}

// FormatFromName maps configuration names to formats.
func FormatFromName(name string) (Format, error) {
	switch name {
	case "bgra8_unorm":
		return FormatB8G8R8A8Unorm, nil
	case "rgba8_unorm":
		return FormatR8G8B8A8Unorm, nil
	case "bgra8_srgb":
		return FormatB8G8R8A8Srgb, nil
	case "rgba8_srgb":
		return FormatR8G8B8A8Srgb, nil
	}
	return FormatUndefined, fmt.Errorf("unknown colour format %q", name)
}

type ColorSpace uint32

const (
	ColorSpaceSrgbNonlinear ColorSpace = iota
	ColorSpaceOther
)

type SurfaceFormat struct {
	Format     Format
	ColorSpace ColorSpace
}

type PresentMode uint32

const (
	PresentModeImmediate PresentMode = iota
	PresentModeMailbox
	PresentModeFifo
	PresentModeFifoRelaxed
)

func (m PresentMode) String() string {
	switch m {
	case PresentModeImmediate:
		return "immediate"
	case PresentModeMailbox:
		return "mailbox"
	case PresentModeFifo:
		return "fifo"
	case PresentModeFifoRelaxed:
		return "fifo-relaxed"
	}
	return "unknown"
}

type ImageLayout uint32

const (
	ImageLayoutUndefined ImageLayout = iota
	ImageLayoutColorAttachment
	ImageLayoutDepthAttachment
	ImageLayoutShaderReadOnly
	ImageLayoutTransferDst
	ImageLayoutPresentSrc
)

func (l ImageLayout) String() string {
	switch l {
	case ImageLayoutUndefined:
		return "undefined"
	case ImageLayoutColorAttachment:
		return "color-attachment"
	case ImageLayoutDepthAttachment:
		return "depth-attachment"
	case ImageLayoutShaderReadOnly:
		return "shader-read-only"
	case ImageLayoutTransferDst:
		return "transfer-dst"
	case ImageLayoutPresentSrc:
		return "present-src"
	}
	return fmt.Sprintf("layout(%d)", uint32(l))
}

type ImageAspect uint32

const (
	AspectColor ImageAspect = 1 << iota
	AspectDepth
	AspectStencil
)

type ImageUsage uint32

const (
	UsageColorAttachment ImageUsage = 1 << iota
	UsageDepthStencilAttachment
	UsageSampled
	UsageTransferDst
	UsageTransientAttachment
)

type PipelineStage uint32

const (
	StageTopOfPipe PipelineStage = 1 << iota
	StageFragmentShader
	StageEarlyFragmentTests
	StageLateFragmentTests
	StageColorAttachmentOutput
	StageTransfer
	StageBottomOfPipe
)

type Access uint32

const AccessNone Access = 0

const (
	AccessShaderRead Access = 1 << iota
	AccessColorAttachmentRead
	AccessColorAttachmentWrite
	AccessDepthStencilAttachmentRead
	AccessDepthStencilAttachmentWrite
	AccessTransferWrite
)

// SampleCount uses the Vulkan bit values, which equal the sample count.
type SampleCount uint32

const (
	SampleCount1  SampleCount = 1
	SampleCount2  SampleCount = 2
	SampleCount4  SampleCount = 4
	SampleCount8  SampleCount = 8
	SampleCount16 SampleCount = 16
	SampleCount32 SampleCount = 32
	SampleCount64 SampleCount = 64
)

// Result is the outcome of acquire and present calls that is not an error.
type Result uint32

const (
	ResultSuccess Result = iota
	ResultSuboptimal
	ResultOutOfDate
)

func (r Result) String() string {
	switch r {
	case ResultSuccess:
		return "success"
	case ResultSuboptimal:
		return "suboptimal"
	case ResultOutOfDate:
		return "out-of-date"
	}
	return "unknown"
}

type LoadOp uint32

const (
	LoadOpClear LoadOp = iota
	LoadOpLoad
	LoadOpDontCare
)

type StoreOp uint32

const (
	StoreOpStore StoreOp = iota
	StoreOpDontCare
)

type ResolveMode uint32

const (
	ResolveModeNone ResolveMode = iota
	ResolveModeAverage
)

type Filter uint32

const (
	FilterLinear Filter = iota
	FilterNearest
)

type AddressMode uint32

const (
	AddressModeClampToEdge AddressMode = iota
	AddressModeRepeat
	AddressModeClampToBorder
)

type DescriptorType uint32

const (
	DescriptorTypeCombinedImageSampler DescriptorType = iota
	DescriptorTypeUniformBuffer
)

type ShaderStage uint32

const (
	ShaderStageVertex ShaderStage = 1 << iota
	ShaderStageFragment
)

type BufferUsage uint32

const (
	BufferUsageVertex BufferUsage = 1 << iota
	BufferUsageIndex
	BufferUsageUniform
)

type CullMode uint32

const (
	CullModeNone CullMode = iota
	CullModeBack
	CullModeFront
)

// UndefinedExtent is the currentExtent sentinel meaning the surface size is
// chosen by the swapchain.
const UndefinedExtent uint32 = 0xFFFFFFFF

type Extent2D struct {
	Width, Height uint32
}

func (e Extent2D) IsZero() bool {
	return e.Width == 0 || e.Height == 0
}

type Rect2D struct {
	X, Y   int32
	Extent Extent2D
}

type Viewport struct {
	X, Y, Width, Height float32
	MinDepth, MaxDepth  float32
}

// FullViewport covers extent with the [0,1] depth range.
func FullViewport(extent Extent2D) Viewport {
	return Viewport{
		Width:    float32(extent.Width),
		Height:   float32(extent.Height),
		MinDepth: 0.0,
		MaxDepth: 1.0,
	}
}

type ImageDesc struct {
	Extent    Extent2D
	Format    Format
	Usage     ImageUsage
	Samples   SampleCount
	MipLevels uint32
}

type SamplerDesc struct {
	MagFilter   Filter
	MinFilter   Filter
	AddressMode AddressMode
	// MaxAnisotropy of 0 disables anisotropic filtering.
	MaxAnisotropy float32
	MaxLod        float32
}

type DescriptorBinding struct {
	Binding uint32
	Type    DescriptorType
	Count   uint32
	Stages  ShaderStage
}

type DescriptorPoolSize struct {
	Type  DescriptorType
	Count uint32
}

type ImageBarrier struct {
	Image     Image
	Aspect    ImageAspect
	OldLayout ImageLayout
	NewLayout ImageLayout
	SrcStage  PipelineStage
	DstStage  PipelineStage
	SrcAccess Access
	DstAccess Access
}

type RenderingAttachment struct {
	View          ImageView
	Layout        ImageLayout
	ResolveMode   ResolveMode
	ResolveView   ImageView
	ResolveLayout ImageLayout
	LoadOp        LoadOp
	StoreOp       StoreOp
	ClearColor    [4]float32
	ClearDepth    float32
	ClearStencil  uint32
}

type RenderingInfo struct {
	Area  Rect2D
	Color []RenderingAttachment
	// Depth is optional.
	Depth *RenderingAttachment
}

type SubmitInfo struct {
	CommandBuffer CommandBuffer
	Wait          Semaphore
	WaitStage     PipelineStage
	Signal        Semaphore
	Fence         Fence
}

type PresentInfo struct {
	Swapchain  Swapchain
	ImageIndex uint32
	Wait       Semaphore
}

type SurfaceCapabilities struct {
	MinImageCount uint32
	// MaxImageCount of 0 means no limit.
	MaxImageCount uint32
	CurrentExtent Extent2D
	MinExtent     Extent2D
	MaxExtent     Extent2D
}

type SurfaceSupport struct {
	Capabilities SurfaceCapabilities
	Formats      []SurfaceFormat
	PresentModes []PresentMode
}

type SwapchainDesc struct {
	MinImageCount uint32
	Format        SurfaceFormat
	Extent        Extent2D
	PresentMode   PresentMode
	OldSwapchain  Swapchain
}

type VertexAttribute struct {
	Location uint32
	// Components is the number of float32 components (1-4).
	Components uint32
	Offset     uint32
}

type PipelineDesc struct {
	VertexShader   ShaderModule
	FragmentShader ShaderModule
	// Stride of 0 means no vertex input.
	VertexStride     uint32
	VertexAttributes []VertexAttribute
	SetLayouts       []DescriptorSetLayout
	PushConstantSize uint32
	PushStages       ShaderStage
	ColorFormat      Format
	DepthFormat      Format
	Samples          SampleCount
	CullMode         CullMode
	AlphaBlend       bool
	DepthWrite       bool
}
