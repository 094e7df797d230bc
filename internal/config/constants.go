// Package config holds the tunable limits and file-layout constants shared
// across the lexer, compiler, VM, and CLI.
package config

// Version is the current SEEKEP version.
var Version = "0.1.0"

const SourceFileExt = ".سكب"

// SourceFileExtensions are all recognized source file extensions.
var SourceFileExtensions = []string{".سكب", ".seekep", ".skp"}

// TrimSourceExt removes any recognized source extension from a filename.
// Returns the original string if no extension matches.
func TrimSourceExt(name string) string {
	for _, ext := range SourceFileExtensions {
		if len(name) >= len(ext) && name[len(name)-len(ext):] == ext {
			return name[:len(name)-len(ext)]
		}
	}
	return name
}

// HasSourceExt returns true if the path ends with any recognized source extension.
func HasSourceExt(path string) bool {
	for _, ext := range SourceFileExtensions {
		if len(path) >= len(ext) && path[len(path)-len(ext):] == ext {
			return true
		}
	}
	return false
}

// Compile-time limits enforced by the compiler.
const (
	MaxConstants = 256 // constant pool is indexed by a single byte
	MaxLocals    = 256
	MaxUpvalues  = 256
	MaxJump      = 0xFFFF
)

// Runtime limits enforced by the VM.
const (
	StackMax  = 65536
	FramesMax = 64
)

// Receiver and literal names the compiler and VM treat as fixed
// identifiers. Disassembly and diagnostics preserve these Arabic
// spellings rather than substituting ASCII placeholders.
const (
	ReceiverName = "هذا"  // "this"
	InitFuncName = "انشئ" // constructor method name
	NullLiteral  = "فارغ" // "null"
	TrueLiteral  = "صحيح" // "true"
	FalseLiteral = "خطأ"  // "false"
)

// Native function names installed by internal/stdlib through the VM's
// RegisterNative hook.
const (
	PrintFuncName  = "اطبع"  // print
	LenFuncName    = "طول"   // len
	TypeOfFuncName = "نوع"   // type-of
	StrFuncName    = "نص"    // to-string
	IntFuncName    = "عدد"   // to-int
	FloatFuncName  = "عشري"  // to-float
	KeysFuncName   = "مفاتيح" // dict keys
	PushFuncName   = "ادفع"  // list push
	RangeFuncName  = "مدى"   // range(n)
)

// Math natives.
const (
	SqrtFuncName   = "جذر"    // square root
	PowFuncName    = "أس"     // power
	SinFuncName    = "جيب"    // sine
	CosFuncName    = "جتا"    // cosine
	FloorFuncName  = "أرضية"  // floor
	CeilFuncName   = "سقف"    // ceiling
	RoundFuncName  = "تقريب"  // round to nearest
	AbsFuncName    = "مطلق"   // absolute value
	MinFuncName    = "أصغر"   // minimum
	MaxFuncName    = "أكبر"   // maximum
	RandomFuncName = "عشوائي" // pseudo-random number
)

// String natives.
const (
	SplitFuncName      = "قسم"     // split on a separator
	JoinFuncName       = "اجمع"    // join a list of strings
	UpperFuncName      = "كبر"     // upper-case
	LowerFuncName      = "صغر"     // lower-case
	StripFuncName      = "شذب"     // trim surrounding whitespace
	ReplaceFuncName    = "استبدل"  // replace all occurrences
	FindFuncName       = "اوجد"    // index of a substring, -1 if absent
	StartsWithFuncName = "يبدأ_ب"  // prefix test
	EndsWithFuncName   = "ينتهي_ب" // suffix test
)

// List natives.
const (
	InsertFuncName  = "ادرج" // insert at index
	RemoveFuncName  = "احذف" // remove at index
	PopFuncName     = "اسحب" // pop the last element
	SortFuncName    = "رتب"  // sort in place
	ReverseFuncName = "اعكس" // reverse in place
	CopyFuncName    = "انسخ" // shallow copy
)
