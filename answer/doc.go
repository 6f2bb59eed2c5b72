// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Package answer turns retrieved passages into a structured answer.
//
// The Composer builds one prompt per question (instructions, the JSON output
// schema, an optional chapter list, the question, and the passages), calls the
// generator once, and parses the reply with ParseAnswer. Parsing is strict:
// a reply that is not exactly one JSON object with the keys answer,
// source_chapter, and keywords fails with a *MalformedAnswerError that keeps
// the raw text for diagnostics.
//
// When retrieval finds nothing the generator is not called at all and the
// Composer returns NoGroundingAnswer, so an unsupported answer is never
// presented as a grounded one.
package answer
