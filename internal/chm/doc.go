// Package chm wraps the external tools that unpack and build compiled HTML
// help files. Extraction tries 7z, extract_chmLib and hh -decompile in turn.
// Compilation generates or patches an HTML Help Workshop project file and
// runs hhc or chmcmd. The CHM binary format itself is never parsed here.
package chm
