package logging

import (
	"gopkg.in/natefinch/lumberjack.v2"
)

// FileAppender writes console formatted lines to a file that is rotated by size.
type FileAppender struct {
	ConsoleAppender
	file *lumberjack.Logger
}

// NewFileAppender returns an appender writing to filename. The file is rotated at 100 MB and the
// three most recent rotations are kept, compressed.
func NewFileAppender(filename string) *FileAppender {
	file := &lumberjack.Logger{
		Filename:   filename,
		MaxSize:    100,
		MaxBackups: 3,
		Compress:   true,
	}
	return &FileAppender{
		ConsoleAppender: NewWriterAppender(file),
		file:            file,
	}
}

// Close closes the underlying file.
func (fa *FileAppender) Close() error {
	return fa.file.Close()
}
