package extract

import "fmt"

// Code 提取错误码，调用方按 code 映射为用户可见的提示
type Code string

const (
    CodePDF         Code = "PDF_EXTRACTION_ERROR"
    CodeDocx        Code = "DOCX_EXTRACTION_ERROR"
    CodePptx        Code = "PPTX_EXTRACTION_ERROR"
    CodeTxt         Code = "TXT_EXTRACTION_ERROR"
    CodeUnsupported Code = "UNSUPPORTED_FORMAT_ERROR"
    CodeNoFile      Code = "NO_FILE_ERROR"
    CodeGeneric     Code = "GENERIC_EXTRACTION_ERROR"
)

// Error 结构化提取错误。提取失败永远不抛裸异常，统一走这里。
type Error struct {
    Code    Code
    Message string
    Err     error
}

func (e *Error) Error() string {
    if e.Err != nil {
        return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
    }
    return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
    return e.Err
}

// NewError 创建结构化提取错误
func NewError(code Code, message string, err error) *Error {
    return &Error{
        Code:    code,
        Message: message,
        Err:     err,
    }
}

// AsError 将任意 error 规范化为 *Error，未知错误归入 GENERIC
func AsError(err error) *Error {
    if err == nil {
        return nil
    }
    if e, ok := err.(*Error); ok {
        return e
    }
    return NewError(CodeGeneric, "Failed to extract text from the uploaded file", err)
}
