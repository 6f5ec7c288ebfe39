package opcode

// Command is the kind of a command in the stream. The set is closed.
type Command uint8

// The commands that the decoder understands.
const (
	CmdNop Command = iota
	CmdUnknownReset
	CmdLoadCP
	CmdLoadXF
	CmdLoadIndexedA
	CmdLoadIndexedB
	CmdLoadIndexedC
	CmdLoadIndexedD
	CmdCallDisplayList
	CmdUnknownMetrics
	CmdInvalidateVertexCache
	CmdLoadBP
	CmdDrawPrimitive
	CmdUnknown

	numCommands
)

var commandNames = [numCommands]string{
	CmdNop:                   "NOP",
	CmdUnknownReset:          "UNKNOWN_RESET",
	CmdLoadCP:                "LOAD_CP_REG",
	CmdLoadXF:                "LOAD_XF_REG",
	CmdLoadIndexedA:          "LOAD_INDX_A",
	CmdLoadIndexedB:          "LOAD_INDX_B",
	CmdLoadIndexedC:          "LOAD_INDX_C",
	CmdLoadIndexedD:          "LOAD_INDX_D",
	CmdCallDisplayList:       "CALL_DL",
	CmdUnknownMetrics:        "UNKNOWN_METRICS",
	CmdInvalidateVertexCache: "INVL_VC",
	CmdLoadBP:                "LOAD_BP_REG",
	CmdDrawPrimitive:         "DRAW_PRIMITIVE",
	CmdUnknown:               "UNKNOWN",
}

func (c Command) String() string {
	if c >= numCommands {
		return "INVALID"
	}

	return commandNames[c]
}

// Leading bytes of the non-primitive commands.
const (
	TagNop                   byte = 0x00
	TagUnknownReset          byte = 0x01
	TagLoadCP                byte = 0x08
	TagLoadXF                byte = 0x10
	TagLoadIndexedA          byte = 0x20
	TagLoadIndexedB          byte = 0x28
	TagLoadIndexedC          byte = 0x30
	TagLoadIndexedD          byte = 0x38
	TagCallDisplayList       byte = 0x40
	TagUnknownMetrics        byte = 0x44
	TagInvalidateVertexCache byte = 0x48
	TagLoadBP                byte = 0x61
)

// Primitive is the primitive type of a draw command.
type Primitive uint8

// The primitive types.
const (
	PrimQuads Primitive = iota
	PrimQuads2
	PrimTriangles
	PrimTriangleStrip
	PrimTriangleFan
	PrimLines
	PrimLineStrip
	PrimPoints
)

const (
	primitiveFlagMask = 0xC0
	primitiveFlag     = 0x80
	primitiveMask     = 0x78
	primitiveShift    = 3
	vatMask           = 0x07
)

// PrimitiveTag builds the leading byte of a draw command.
func PrimitiveTag(prim Primitive, vat uint8) byte {
	return primitiveFlag | byte(prim)<<primitiveShift | vat&vatMask
}

// The first indexed array that the LOAD_INDX commands address.
const firstIndexedArray = 0xC

var dispatch [256]Command

func init() {
	for i := range dispatch {
		if byte(i)&primitiveFlagMask == primitiveFlag {
			dispatch[i] = CmdDrawPrimitive
		} else {
			dispatch[i] = CmdUnknown
		}
	}

	dispatch[TagNop] = CmdNop
	dispatch[TagUnknownReset] = CmdUnknownReset
	dispatch[TagLoadCP] = CmdLoadCP
	dispatch[TagLoadXF] = CmdLoadXF
	dispatch[TagLoadIndexedA] = CmdLoadIndexedA
	dispatch[TagLoadIndexedB] = CmdLoadIndexedB
	dispatch[TagLoadIndexedC] = CmdLoadIndexedC
	dispatch[TagLoadIndexedD] = CmdLoadIndexedD
	dispatch[TagCallDisplayList] = CmdCallDisplayList
	dispatch[TagUnknownMetrics] = CmdUnknownMetrics
	dispatch[TagInvalidateVertexCache] = CmdInvalidateVertexCache
	dispatch[TagLoadBP] = CmdLoadBP
}

// CommandOf returns the command selected by a leading byte.
func CommandOf(tag byte) Command {
	return dispatch[tag]
}

// Cycle costs of the commands.
const (
	costNop          = 6
	costLoadCP       = 12
	costLoadXFBase   = 18
	costLoadXFWord   = 6
	costLoadIndexed  = 6
	costLoadBP       = 12
	costCallDL       = 6
	costPrimitive    = 6
	costPerVertex    = 12
	xfMaxTransferLen = 16
)
