package pydeps

// pythonStdlib is the fixed allowlist of standard-library root modules the
// analyzer ignores. It intentionally covers several Python versions at once;
// a stale entry only means one extra prompt for the user, never a wrong
// install.
var pythonStdlib = map[string]struct{}{}

func init() {
	names := []string{
		"abc", "aifc", "argparse", "array", "ast", "asynchat", "asyncio",
		"asyncore", "audioop", "base64", "binascii", "binhex", "bisect",
		"bz2", "cgi", "cgitb", "chunk", "code", "codeop", "collections",
		"colorsys", "compileall", "concurrent", "configparser", "contextlib",
		"copy", "copyreg", "crypt", "csv", "ctypes", "curses", "datetime",
		"difflib", "dis", "email", "ensurepip", "enum", "errno", "fcntl",
		"fnmatch", "formatter", "ftplib", "functools", "getopt", "getpass",
		"glob", "grp", "gzip", "hashlib", "heapq", "html", "http", "imaplib",
		"imghdr", "imp", "importlib", "inspect", "io", "ipaddress",
		"itertools", "json", "keyword", "linecache", "locale", "logging",
		"lzma", "mailbox", "marshal", "math", "mimetypes", "mmap",
		"modulefinder", "msilib", "msvcrt", "multiprocessing", "nis",
		"nntplib", "nt", "numbers", "opcode", "operator", "optparse", "os",
		"ossaudiodev", "parser", "pathlib", "pickle", "pickletools", "pipes",
		"pkgutil", "platform", "poplib", "posix", "pprint", "pty", "pwd",
		"py_compile", "pyclbr", "queue", "quopri", "random", "re", "reprlib",
		"resource", "runpy", "sched", "secrets", "select", "selectors",
		"shlex", "shutil", "signal", "smtpd", "smtplib", "sndhdr", "socket",
		"socketserver", "spwd", "ssl", "statistics", "string", "struct",
		"subprocess", "sunau", "symbol", "symtable", "sys", "syslog",
		"tabnanny", "tarfile", "telnetlib", "tempfile", "termios", "textwrap",
		"threading", "time", "token", "tokenize", "traceback", "tty",
		"types", "typing", "unicodedata", "unittest", "urllib", "uu", "uuid",
		"venv", "warnings", "wave", "weakref", "webbrowser", "winreg",
		"winsound", "wintypes", "wsgiref", "xml", "xmlrpc", "zipapp",
		"zipfile", "zipimport", "zlib",
	}
	for _, n := range names {
		pythonStdlib[n] = struct{}{}
	}
}

// IsStdlib reports whether a root module name is on the allowlist.
func IsStdlib(name string) bool {
	_, ok := pythonStdlib[name]
	return ok
}
