// Command stub-backend is a local development stand-in for the recognition
// and translation back-ends. It accepts the same requests the service sends
// and returns canned responses.
package main

import (
	"encoding/json"
	"io"
	"log"
	"net/http"
	"time"
)

type recognizeResponse struct {
	Text     string  `json:"text"`
	Language string  `json:"language"`
	Duration float64 `json:"duration"`
}

type translateRequest struct {
	Text       string `json:"text"`
	SourceLang string `json:"source_lang"`
	TargetLang string `json:"target_lang"`
}

type translateResponse struct {
	TranslatedText string `json:"translated_text"`
}

func recognizeHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := r.ParseMultipartForm(10 << 20); err != nil { // 10 MB
		http.Error(w, "Error parsing form", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "Error getting audio file", http.StatusBadRequest)
		return
	}
	defer file.Close()

	audioData, err := io.ReadAll(file)
	if err != nil {
		http.Error(w, "Error reading audio file", http.StatusInternalServerError)
		return
	}

	log.Printf("recognition request: file=%s size=%d model=%s",
		header.Filename, len(audioData), r.FormValue("model"))

	// Simulate processing time
	time.Sleep(200 * time.Millisecond)

	response := recognizeResponse{
		Text:     "this is a stub transcription of the audio segment",
		Language: "en",
		Duration: 3.0,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(response)

	log.Printf("recognition response sent: %q", response.Text)
}

func translateHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req translateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Error parsing JSON body", http.StatusBadRequest)
		return
	}

	log.Printf("translation request: %s -> %s text=%q", req.SourceLang, req.TargetLang, req.Text)

	response := translateResponse{
		TranslatedText: "це тестовий переклад сегмента",
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(response)
}

func main() {
	http.HandleFunc("/recognize", recognizeHandler)
	http.HandleFunc("/translate", translateHandler)

	port := ":9000"
	log.Printf("Stub backend starting on port %s", port)
	log.Printf("Recognition endpoint: http://localhost%s/recognize", port)
	log.Printf("Translation endpoint: http://localhost%s/translate", port)

	if err := http.ListenAndServe(port, nil); err != nil {
		log.Fatal("Server failed to start:", err)
	}
}
