package smtp

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/mail"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/transform"
)

// ParsedInquiry 表示解析后的来件。
type ParsedInquiry struct {
	Subject string
	From    string
	Body    string
}

// ParseInquiry 解析来件,提取主题与纯文本正文。
// HTML 正文只在没有纯文本部分时作为降级使用,附件一律忽略。
func ParseInquiry(raw []byte) (*ParsedInquiry, error) {
	msg, err := mail.ReadMessage(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("parse mail: %w", err)
	}

	dec := new(mime.WordDecoder)
	subject, err := dec.DecodeHeader(msg.Header.Get("Subject"))
	if err != nil {
		subject = msg.Header.Get("Subject")
	}

	parsed := &ParsedInquiry{
		Subject: subject,
		From:    msg.Header.Get("From"),
	}

	contentType := msg.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "text/plain"
	}

	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = "text/plain"
	}

	if strings.HasPrefix(mediaType, "multipart/") {
		boundary := params["boundary"]
		if boundary == "" {
			return nil, fmt.Errorf("multipart message without boundary")
		}
		text, html := extractParts(multipart.NewReader(msg.Body, boundary))
		parsed.Body = text
		if parsed.Body == "" {
			parsed.Body = html
		}
		return parsed, nil
	}

	body, err := decodeBody(msg.Body, msg.Header.Get("Content-Transfer-Encoding"), params["charset"])
	if err != nil {
		return nil, err
	}
	parsed.Body = body
	return parsed, nil
}

// extractParts 遍历 multipart 部分,返回纯文本与 HTML 正文。
func extractParts(mr *multipart.Reader) (text, html string) {
	for {
		part, err := mr.NextPart()
		if err != nil {
			return text, html
		}

		mediaType, params, err := mime.ParseMediaType(part.Header.Get("Content-Type"))
		if err != nil {
			continue
		}

		// 嵌套 multipart 继续下钻
		if strings.HasPrefix(mediaType, "multipart/") {
			if boundary := params["boundary"]; boundary != "" {
				t, h := extractParts(multipart.NewReader(part, boundary))
				if text == "" {
					text = t
				}
				if html == "" {
					html = h
				}
			}
			continue
		}

		switch mediaType {
		case "text/plain":
			if text == "" {
				if body, err := decodeBody(part, part.Header.Get("Content-Transfer-Encoding"), params["charset"]); err == nil {
					text = body
				}
			}
		case "text/html":
			if html == "" {
				if body, err := decodeBody(part, part.Header.Get("Content-Transfer-Encoding"), params["charset"]); err == nil {
					html = body
				}
			}
		}
	}
}

// decodeBody 按传输编码与字符集解码正文。
func decodeBody(reader io.Reader, transferEncoding, charset string) (string, error) {
	switch strings.ToLower(transferEncoding) {
	case "base64":
		reader = base64.NewDecoder(base64.StdEncoding, reader)
	case "quoted-printable":
		reader = quotedprintable.NewReader(reader)
	}

	if enc := charsetEncoding(charset); enc != nil {
		reader = transform.NewReader(reader, enc.NewDecoder())
	}

	body, err := io.ReadAll(reader)
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}
	return string(body), nil
}

// charsetEncoding 返回非 UTF-8 字符集的解码器,未知字符集按 UTF-8 处理。
func charsetEncoding(charset string) encoding.Encoding {
	switch strings.ToLower(charset) {
	case "gbk", "gb2312":
		return simplifiedchinese.GBK
	case "gb18030":
		return simplifiedchinese.GB18030
	default:
		return nil
	}
}
