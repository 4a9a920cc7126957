package app

// Key binding constants used in handleKey.
const (
	KeyQuit       = "q"
	KeyQuitUpper  = "Q"
	KeyCtrlC      = "ctrl+c"
	KeyTab        = "tab"
	KeyUp         = "up"
	KeyDown       = "down"
	KeyJ          = "j"
	KeyK          = "k"
	KeyEnter      = "enter"
	KeyEsc        = "esc"
	KeyBackspace  = "backspace"
	KeyRetry      = "r"
	KeyRename     = "e"
	KeyDelete     = "d"
	KeyNew        = "n"
	KeyAssign     = "s"
	KeyEditText   = "t"
	KeyReassign   = "R"
	KeyUpload     = "u"
	KeyCount      = "c"
	KeyCancel     = "x"
	KeyOpenResult = "o"
	KeyScreen1    = "1"
	KeyScreen2    = "2"
	KeyScreen3    = "3"
	KeyScreen4    = "4"
)
