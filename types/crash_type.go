package types

// CrashType is the crash classification sent to the collector.
type CrashType string

// Crash type wire values.
const (
	CrashTypeNativeFatal       CrashType = "fatal native crash"
	CrashTypeNativeNonFatal    CrashType = "non-fatal native crash"
	CrashTypeUncaughtException CrashType = "uncaught exception"
	CrashTypeCaughtException   CrashType = "caught exception"
	crashTypeUnknown           CrashType = ""
)

// TypeOf returns the crash type tag for c.
// A nil descriptor yields the empty type.
func TypeOf(c Crash) CrashType {
	switch v := c.(type) {
	case NativeCodeCrash:
		if v.IsFatal {
			return CrashTypeNativeFatal
		}
		return CrashTypeNativeNonFatal
	case *NativeCodeCrash:
		if v == nil {
			return crashTypeUnknown
		}
		return TypeOf(*v)
	case UncaughtExceptionCrash, *UncaughtExceptionCrash:
		return CrashTypeUncaughtException
	case CaughtExceptionCrash, *CaughtExceptionCrash:
		return CrashTypeCaughtException
	default:
		return crashTypeUnknown
	}
}

// IsFatal reports whether the crash type terminated the application.
func (t CrashType) IsFatal() bool {
	return t == CrashTypeNativeFatal || t == CrashTypeUncaughtException
}

// IsNative reports whether the crash type is a native code crash.
func (t CrashType) IsNative() bool {
	return t == CrashTypeNativeFatal || t == CrashTypeNativeNonFatal
}

// Valid reports whether t is one of the known crash types.
func (t CrashType) Valid() bool {
	switch t {
	case CrashTypeNativeFatal, CrashTypeNativeNonFatal,
		CrashTypeUncaughtException, CrashTypeCaughtException:
		return true
	}
	return false
}
